package publish

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/snpm/errors"
)

var validSum = strings.Repeat("ab", 20)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name            string
		req             Request
		requireChecksum bool
		wantMsg         string
		wantClass       error
	}{
		{name: "complete", req: Request{URL: "https://github.com/acme/widget", Version: "1.2.0", Checksum: validSum}, requireChecksum: true},
		{name: "session without checksum", req: Request{URL: "git@github.com:acme/widget.git", Version: "1.2.0"}},
		{name: "missing url", req: Request{Version: "1.2.0", Checksum: validSum}, requireChecksum: true, wantMsg: MessageInvalidURL, wantClass: errors.ErrInvalidReference},
		{name: "foreign host", req: Request{URL: "https://example.com/acme/widget", Version: "1.2.0"}, wantMsg: MessageInvalidURL, wantClass: errors.ErrInvalidReference},
		{name: "missing version", req: Request{URL: "https://github.com/acme/widget", Checksum: validSum}, requireChecksum: true, wantMsg: MessageInvalidVer, wantClass: errors.ErrInputValidation},
		{name: "bad version", req: Request{URL: "https://github.com/acme/widget", Version: "latest"}, wantMsg: MessageInvalidVer, wantClass: errors.ErrInputValidation},
		{name: "missing checksum", req: Request{URL: "https://github.com/acme/widget", Version: "1.2.0"}, requireChecksum: true, wantMsg: MessageInvalidSum, wantClass: errors.ErrInputValidation},
		{name: "malformed checksum", req: Request{URL: "https://github.com/acme/widget", Version: "1.2.0", Checksum: "abc"}, wantMsg: MessageInvalidSum, wantClass: errors.ErrInputValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Validate(tt.requireChecksum)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.True(t, errors.Is(err, tt.wantClass))
			assert.True(t, errors.IsClientError(err))
		})
	}
}

func TestRequestValidate_Normalizes(t *testing.T) {
	req := Request{URL: " https://github.com/acme/widget ", Version: "v1.2.0", Checksum: " " + strings.ToUpper(validSum) + " "}
	require.NoError(t, req.Validate(true))
	assert.Equal(t, "https://github.com/acme/widget", req.URL)
	assert.Equal(t, "1.2.0", req.Version)
	assert.Equal(t, strings.ToUpper(validSum), req.Checksum)
}
