package query

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/statcube/pkg/core"
)

// Fingerprint computes the stable content hash identifying one request.
// The options struct marshals with fixed field order, so identical requests
// hash identically and any changed filter value produces a different hash.
func Fingerprint(datasetID, revisionID uuid.UUID, opts core.QueryOptions) string {
	payload := struct {
		DatasetID  string            `json:"dataset_id"`
		RevisionID string            `json:"revision_id"`
		Options    core.QueryOptions `json:"options"`
	}{datasetID.String(), revisionID.String(), opts}

	raw, err := json.Marshal(payload)
	if err != nil {
		// QueryOptions contains only marshal-safe fields.
		panic(fmt.Sprintf("query fingerprint marshal: %v", err))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// newID returns a short random entry token, independent of the fingerprint.
func newID() string {
	var buf [10]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("query id entropy: %v", err))
	}
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:]))
}
