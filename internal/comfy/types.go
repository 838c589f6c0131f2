package comfy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Notification types pushed over the websocket.
const (
	EventExecuting            = "executing"
	EventExecutionError       = "execution_error"
	EventExecutionInterrupted = "execution_interrupted"
)

type submitRequest struct {
	Prompt   map[string]any `json:"prompt"`
	ClientID string         `json:"client_id"`
}

// SubmitResponse is the worker's answer to POST /prompt.
type SubmitResponse struct {
	PromptID   string         `json:"prompt_id"`
	Number     int            `json:"number"`
	NodeErrors map[string]any `json:"node_errors,omitempty"`
}

// History maps a prompt id to its execution record.
type History map[string]HistoryEntry

type HistoryEntry struct {
	Outputs Outputs        `json:"outputs"`
	Status  map[string]any `json:"status,omitempty"`
}

// ImageRef addresses one output file on the worker.
type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type NodeOutput struct {
	NodeID string
	Images []ImageRef
}

// Outputs keeps the node order of the worker's "outputs" object.
type Outputs []NodeOutput

func (o *Outputs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*o = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("outputs: expected object, got %v", tok)
	}
	out := make(Outputs, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		nodeID, _ := keyTok.(string)
		var node struct {
			Images []ImageRef `json:"images"`
		}
		if err := dec.Decode(&node); err != nil {
			return fmt.Errorf("outputs[%s]: %w", nodeID, err)
		}
		out = append(out, NodeOutput{NodeID: nodeID, Images: node.Images})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

// Notification is a decoded websocket text frame.
type Notification struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ExecutingData is the payload of an "executing" notification. A nil Node
// means every node of the prompt has run.
type ExecutingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type ExecutionErrorData struct {
	PromptID         string `json:"prompt_id"`
	NodeID           string `json:"node_id"`
	NodeType         string `json:"node_type"`
	ExceptionType    string `json:"exception_type"`
	ExceptionMessage string `json:"exception_message"`
}
