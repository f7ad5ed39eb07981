package processors

import (
	"sync"

	"github.com/pkg/errors"
	tokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// TokenCounter reports how many model tokens a text encodes to.
type TokenCounter interface {
	Count(text string) (int, error)
}

// HFTokenCounter counts tokens with a HuggingFace tokenizer.json.
type HFTokenCounter struct {
	mu  sync.Mutex
	tok *tokenizer.Tokenizer
}

// LoadTokenCounter reads a tokenizer.json file.
func LoadTokenCounter(path string) (*HFTokenCounter, error) {
	tok, err := pretrained.FromFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tokenizer %s", path)
	}
	return &HFTokenCounter{tok: tok}, nil
}

func (h *HFTokenCounter) Count(text string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	enc, err := h.tok.EncodeSingle(text)
	if err != nil {
		return 0, err
	}
	return len(enc.GetIds()), nil
}
