package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"geobridge/internal/domain"
)

// Checksum digests a tagged data item: blake2b-256 over
// kind + "\n" + the item's JSON scene form, truncated to 16 bytes.
func Checksum(item domain.TaggedData) (domain.Checksum, error) {
	so, err := objectOf(item)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(so)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s for checksum: %w", so.Kind, err)
	}
	data := append([]byte(so.Kind+"\n"), payload...)
	sum := blake2b.Sum256(data)
	return domain.Checksum(hex.EncodeToString(sum[:16])), nil
}
