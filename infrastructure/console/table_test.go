package console

import (
	"anonchat/domain"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderHistory(t *testing.T) {
	req := require.New(t)

	var out bytes.Buffer
	RenderHistory(&out, nil)
	req.Equal("no message yet\n", out.String())

	out.Reset()
	RenderHistory(&out, []domain.StoredMessage{
		{ID: 1, Sender: "anon42", Text: "hi"},
		{ID: 2, Sender: "anon99", Text: "yo"},
	})
	req.Contains(out.String(), "anon42")
	req.Contains(out.String(), "yo")
	req.Equal(3, strings.Count(strings.TrimSpace(out.String()), "\n")+1)
}
