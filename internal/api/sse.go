package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ndelvaux/jurisnote/internal/pipeline"
)

// writeSSE emits one pipeline event as a server-sent event.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev pipeline.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind(), data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
