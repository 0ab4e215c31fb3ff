package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jakekaplan/elaiphant/internal/validate"
)

const maxResponseBytes = 1 << 20

// HTTPAdvisor posts the problem statement as JSON to an advisory endpoint
// and decodes the structured suggestions it returns.
type HTTPAdvisor struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

func (a *HTTPAdvisor) Propose(ctx context.Context, stmt ProblemStatement) ([]validate.CandidateChange, error) {
	body, err := json.Marshal(stmt)
	if err != nil {
		return nil, &AdvisoryError{Err: fmt.Errorf("encoding problem statement: %w", err)}
	}

	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &AdvisoryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &AdvisoryError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &AdvisoryError{Err: fmt.Errorf("advisory endpoint returned %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &AdvisoryError{Err: err}
	}

	return DecodeCandidates(data)
}
