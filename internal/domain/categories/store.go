package categories

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spendwell/spendwell/internal/infrastructure/atomicfile"
)

const filePerm = 0o600

// Store persists the overlay as a single JSON object file,
// {"merchant": "category"}, readable and editable by the owning user only.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the overlay. A missing file is an empty overlay.
func (s *Store) Load() (Overlay, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Overlay{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read category overlay: %w", err)
	}

	overlay := Overlay{}
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse category overlay: %w", err)
	}
	return overlay, nil
}

// Save writes the overlay atomically with owner-only permissions.
func (s *Store) Save(overlay Overlay) error {
	data, err := json.MarshalIndent(overlay, "", "  ")
	if err != nil {
		return fmt.Errorf("encode category overlay: %w", err)
	}
	if err := atomicfile.WriteBytes(s.path, filePerm, data); err != nil {
		return fmt.Errorf("save category overlay: %w", err)
	}
	return nil
}
