package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"companion-call-demo/backend/internal/call"
	"companion-call-demo/backend/internal/models"
	"companion-call-demo/backend/internal/ws"
)

var toggles = map[string]call.Control{
	"/mute":       call.ControlMute,
	"/video":      call.ControlVideo,
	"/captions":   call.ControlCaptions,
	"/chat":       call.ControlChatPanel,
	"/fullscreen": call.ControlFullscreen,
}

// parseInput turns a typed line into the frame to send. Blank lines yield nil.
func parseInput(line string) (*ws.Message, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil, nil
	case line == "/end":
		return &ws.Message{Type: ws.TypeEnd}, nil
	case line == "/ping":
		return &ws.Message{Type: ws.TypePing}, nil
	case strings.HasPrefix(line, "/"):
		control, ok := toggles[line]
		if !ok {
			return nil, errors.New("unknown command " + line)
		}
		return &ws.Message{Type: ws.TypeToggle, Content: ws.ToggleContent{Control: control}}, nil
	}
	return &ws.Message{Type: ws.TypeChat, Content: ws.ChatContent{Text: line}}, nil
}

// renderFrame formats one server frame for the terminal. Frames not worth
// showing render as "".
func renderFrame(typ string, content json.RawMessage) string {
	switch typ {
	case ws.TypeState:
		var s ws.StateContent
		if json.Unmarshal(content, &s) != nil {
			return ""
		}
		return color.CyanString("• call %s", s.State)

	case ws.TypeTranscript:
		var e call.Entry
		if json.Unmarshal(content, &e) != nil {
			return ""
		}
		ts := e.Timestamp.Local().Format("15:04:05")
		if e.Sender == call.SenderUser {
			return fmt.Sprintf("%s %s %s", ts, color.BlueString("you:"), e.Text)
		}
		return fmt.Sprintf("%s %s %s", ts, color.MagentaString("companion:"), e.Text)

	case ws.TypeIndicator:
		var ind call.Indicators
		if json.Unmarshal(content, &ind) != nil {
			return ""
		}
		switch {
		case ind.Caption != "":
			return color.HiBlackString("  [%s]", ind.Caption)
		case ind.Thinking:
			return color.HiBlackString("  …thinking")
		}
		return ""

	case ws.TypeControls:
		var c call.ControlState
		if json.Unmarshal(content, &c) != nil {
			return ""
		}
		return color.HiBlackString("  muted=%t video=%t captions=%t chat=%t fullscreen=%t",
			c.Muted, c.VideoEnabled, c.CaptionsEnabled, c.ChatPanelVisible, c.Fullscreen)

	case ws.TypeEnded:
		var e ws.EndedContent
		if json.Unmarshal(content, &e) != nil {
			return ""
		}
		return color.CyanString("• call %s after %s", e.State, e.Duration)

	case ws.TypeError:
		var e ws.ErrorContent
		if json.Unmarshal(content, &e) != nil {
			return ""
		}
		return color.RedString("! %s: %s", e.Code, e.Message)

	case ws.TypePong:
		return color.GreenString("✓ pong")
	}
	// duration ticks are too chatty for a terminal
	return ""
}

func renderCompanions(profiles []models.CompanionProfile) string {
	var sb strings.Builder
	sb.WriteString(color.CyanString("Companions\n"))
	for _, p := range profiles {
		fmt.Fprintf(&sb, "  %s  %-10s %s\n", color.YellowString("%3s", p.ID), p.Name, strings.Join(p.Specialties, ", "))
		fmt.Fprintf(&sb, "       %s\n", color.HiBlackString("%s", p.Description))
	}
	return sb.String()
}

func renderCalls(snaps []call.Snapshot) string {
	if len(snaps) == 0 {
		return "No live calls\n"
	}
	var sb strings.Builder
	sb.WriteString(color.CyanString("Live calls\n"))
	for _, s := range snaps {
		state := string(s.State)
		if s.State == call.StateActive {
			state = color.GreenString(state)
		}
		fmt.Fprintf(&sb, "  %-32s %-10s %-12s %s  %d messages\n", s.RoomID, s.Companion.Name, state, s.Duration, s.Messages)
	}
	return sb.String()
}
