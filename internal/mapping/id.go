package mapping

import (
	"fmt"
	"strings"

	"github.com/rs/xid"
)

// generateBackendID produces an id of the form "<type>_<random8>": an
// 8-character lowercase suffix taken from a [xid.ID], prefixed with the
// backend type so ids remain human-scannable in logs. The last 8 characters
// of an xid encode its process-id and counter bytes, not its timestamp, so
// suffixes are not ordered by creation time.
func generateBackendID(typ string) (string, error) {
	id := xid.New().String()
	suffix := strings.ToLower(id[len(id)-8:])
	if typ == "" {
		typ = "backend"
	}
	return fmt.Sprintf("%s_%s", typ, suffix), nil
}
