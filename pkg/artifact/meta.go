package artifact

import (
	"encoding/hex"
	"time"

	"StegLab/pkg/models"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// Artifact describes one stored file. It is persisted as meta.cbor next to the
// content.
type Artifact struct {
	Handle      string      `cbor:"handle"`
	Name        string      `cbor:"name"`
	ContentType string      `cbor:"content_type"`
	Size        int64       `cbor:"size"`
	Digest      string      `cbor:"digest"`
	Compression Compression `cbor:"compression"`
	StoredSize  int64       `cbor:"stored_size"`
	Companions  []string    `cbor:"companions,omitempty"`
	Created     time.Time   `cbor:"created"`
}

// Ref returns the reference handed back to callers
func (a *Artifact) Ref() models.ArtifactRef {
	return models.ArtifactRef{
		Handle:      a.Handle,
		Filename:    a.Name,
		ContentType: a.ContentType,
		Size:        a.Size,
		Digest:      a.Digest,
	}
}

// HasCompanion reports whether a companion with suffix was stored
func (a *Artifact) HasCompanion(suffix string) bool {
	for _, s := range a.Companions {
		if s == suffix {
			return true
		}
	}
	return false
}

// Digest returns the hex blake3 sum of data
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	encMode, err = opts.EncMode()
	if err != nil {
		panic("artifact: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("artifact: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshalMeta(a *Artifact) ([]byte, error) { return encMode.Marshal(a) }

func unmarshalMeta(data []byte) (*Artifact, error) {
	var a Artifact
	if err := decMode.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
