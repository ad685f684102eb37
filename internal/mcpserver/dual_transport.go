package mcpserver

import (
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const sessionIDHeader = "Mcp-Session-Id"

// DualTransportHandler serves Streamable HTTP and legacy SSE clients on the
// same path.
type DualTransportHandler struct {
	streamable *mcp.StreamableHTTPHandler
	sse        *mcp.SSEHandler
}

// NewDualTransportHandler creates a new DualTransportHandler.
func NewDualTransportHandler(getServer func(*http.Request) *mcp.Server) *DualTransportHandler {
	return &DualTransportHandler{
		streamable: mcp.NewStreamableHTTPHandler(getServer, nil),
		sse:        mcp.NewSSEHandler(getServer, nil),
	}
}

// ServeHTTP picks a transport from the method, session markers and Accept header.
func (h *DualTransportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// SSE message posts carry the session in the query
	if r.Method == http.MethodPost && r.URL.Query().Has("sessionid") {
		h.sse.ServeHTTP(w, r)
		return
	}

	// A streamable session opening its notification stream
	if r.Header.Get(sessionIDHeader) != "" {
		h.streamable.ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodGet && acceptsEventStream(r) {
		h.sse.ServeHTTP(w, r)
		return
	}

	h.streamable.ServeHTTP(w, r)
}

func acceptsEventStream(r *http.Request) bool {
	for _, value := range r.Header.Values("Accept") {
		for _, c := range strings.Split(value, ",") {
			mediaType, _, _ := strings.Cut(strings.TrimSpace(c), ";")
			switch strings.TrimSpace(mediaType) {
			case "text/event-stream", "text/*", "*/*":
				return true
			}
		}
	}
	return false
}
