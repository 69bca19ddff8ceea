package push

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// clientKeyRandomLen is the number of hex characters taken from the UUID.
const clientKeyRandomLen = 13

// newClientKey generates the opaque identity sent in every handshake.
// It is created once per Client and reused across reconnects so the
// gateway can recognise the same client.
//
// Format: client_<unix-millis>_<13 hex chars>
func newClientKey(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("client_%d_%s", now.UnixMilli(), random[:clientKeyRandomLen])
}
