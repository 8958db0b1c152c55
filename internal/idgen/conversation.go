// Package idgen derives the deterministic conversation identifiers the
// messaging engine keys every store by.
package idgen

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// ConversationID returns sort(participants).join("_") for a two-party
// conversation, or group_<hash> for anything larger. Pair IDs are stable
// across retries (they carry no timestamp); group IDs are not, since a
// group's hash is seeded with the creation instant, matching the
// reference implementation.
func ConversationID(participants []string, nowUnixMilli int64) string {
	sorted := append([]string{}, participants...)
	sort.Strings(sorted)

	if len(sorted) == 2 {
		return sorted[0] + "_" + sorted[1]
	}

	seed := strings.Join(sorted, "") + strconv.FormatInt(nowUnixMilli, 10)
	sum := blake3.Sum256([]byte(seed))
	return "group_" + hex.EncodeToString(sum[:8])
}
