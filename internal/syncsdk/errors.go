package syncsdk

import (
	"fmt"

	"github.com/imroc/req/v3"

	"github.com/openmined/treesync/internal/syncproto"
)

// handleAPIError turns a failed round trip into one of the syncproto errors.
// A nil return means the response is a success and its body can be decoded.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%w: %s: %w", syncproto.ErrTransport, operation, requestErr)
	}

	if !resp.IsErrorState() {
		return nil
	}

	apiErr := &syncproto.APIError{Status: resp.StatusCode}
	if err := jsonUnmarshal(resp.Bytes(), &apiErr.ErrorResponse); err != nil || apiErr.Code == "" {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %s: status %d", syncproto.ErrTransport, operation, resp.StatusCode)
		}
		return fmt.Errorf("%w: %s: status %d without error body", syncproto.ErrMalformedResponse, operation, resp.StatusCode)
	}

	return fmt.Errorf("%s: %w", operation, apiErr)
}

// decode unmarshals a success body. Any failure is a protocol violation.
func decode(resp *req.Response, v any, operation string) error {
	body := resp.Bytes()
	if len(body) == 0 {
		return fmt.Errorf("%w: %s: empty body", syncproto.ErrMalformedResponse, operation)
	}
	if err := jsonUnmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %w", syncproto.ErrMalformedResponse, operation, err)
	}
	return nil
}
