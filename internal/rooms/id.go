package rooms

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRoomID mints an id of the form room_<unixMillis>_<9 base36 chars>
func NewRoomID(now time.Time, intN func(int) int) string {
	if intN == nil {
		intN = rand.IntN
	}

	var b strings.Builder
	b.WriteString("room_")
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('_')
	for range 9 {
		b.WriteByte(base36[intN(len(base36))])
	}
	return b.String()
}
