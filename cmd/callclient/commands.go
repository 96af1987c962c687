package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"companion-call-demo/backend/internal/call"
	"companion-call-demo/backend/internal/models"
	"companion-call-demo/backend/internal/ws"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func companionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companions",
		Short: "List the available companions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var profiles []models.CompanionProfile
			if err := getJSON(cmd.Context(), "/api/companions", &profiles); err != nil {
				return err
			}
			fmt.Print(renderCompanions(profiles))
			return nil
		},
	}
}

func callsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calls",
		Short: "List live calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snaps []call.Snapshot
			if err := getJSON(cmd.Context(), "/api/calls", &snaps); err != nil {
				return err
			}
			fmt.Print(renderCalls(snaps))
			return nil
		},
	}
}

func callCmd() *cobra.Command {
	var participant string
	var captions bool

	cmd := &cobra.Command{
		Use:   "call <companionId>",
		Short: "Start a call with a companion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.StartCallRequest{CompanionID: args[0], ParticipantID: participant}
			if cmd.Flags().Changed("captions") {
				req.Captions = &captions
			}

			var started models.StartCallResponse
			if err := postJSON(cmd.Context(), "/api/calls", req, &started); err != nil {
				return err
			}
			fmt.Printf("%s %s in %s\n", color.CyanString("Calling"), started.Companion.Name, started.RoomID)
			return runCall(cmd.Context(), started.JoinURL)
		},
	}

	cmd.Flags().StringVar(&participant, "participant", "", "Participant id (defaults to a fresh one)")
	cmd.Flags().BoolVar(&captions, "captions", false, "Start with captions on")
	return cmd
}

// runCall connects to joinURL and pumps stdin lines into the call until it ends
func runCall(ctx context.Context, joinURL string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, joinURL, nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("join failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var in struct {
				Type    string          `json:"type"`
				Content json.RawMessage `json:"content"`
			}
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			if line := renderFrame(in.Type, in.Content); line != "" {
				fmt.Println(line)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			_ = conn.WriteJSON(ws.Message{Type: ws.TypeEnd})
			<-done
			return nil
		case line, ok := <-lines:
			if !ok {
				_ = conn.WriteJSON(ws.Message{Type: ws.TypeEnd})
				<-done
				return nil
			}
			msg, err := parseInput(line)
			if err != nil {
				fmt.Println(color.YellowString(err.Error()))
				continue
			}
			if msg == nil {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
		}
	}
}

func getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(serverURL, "/")+path, nil)
	if err != nil {
		return err
	}
	return do(req, http.StatusOK, out)
}

func postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, http.StatusCreated, out)
}

func do(req *http.Request, want int, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil && envelope.Error.Code != "" {
			return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
