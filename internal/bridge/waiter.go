package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"promptbridge/internal/comfy"
)

// AwaitCompletion consumes messages from ch until the worker reports that
// every node of promptID has executed. Preview frames and notifications for
// other prompts are dropped.
func AwaitCompletion(ctx context.Context, ch comfy.Channel, promptID string) error {
	dropped := 0
	for {
		msg, err := ch.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return newError(KindTimeout, "await", fmt.Errorf("prompt %s did not finish in time: %w", promptID, err))
			}
			return newError(KindChannel, "await", fmt.Errorf("prompt %s: %w", promptID, err))
		}
		if msg.Type != comfy.TextMessage {
			dropped++
			continue
		}
		done, err := inspectNotification(msg.Data, promptID)
		if err != nil {
			return err
		}
		if done {
			if dropped > 0 {
				log.Printf("bridge: prompt %s finished, %d preview frames dropped", promptID, dropped)
			}
			return nil
		}
	}
}

// inspectNotification reports whether raw is the terminal signal for
// promptID. Unparseable frames are not terminal.
func inspectNotification(raw []byte, promptID string) (bool, error) {
	var n comfy.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return false, nil
	}
	switch n.Type {
	case comfy.EventExecuting:
		var data comfy.ExecutingData
		if err := json.Unmarshal(n.Data, &data); err != nil {
			return false, nil
		}
		return data.PromptID == promptID && data.Node == nil, nil
	case comfy.EventExecutionError, comfy.EventExecutionInterrupted:
		var data comfy.ExecutionErrorData
		if err := json.Unmarshal(n.Data, &data); err != nil || data.PromptID != promptID {
			return false, nil
		}
		if n.Type == comfy.EventExecutionInterrupted {
			return false, newError(KindExecution, "await", fmt.Errorf("prompt %s was interrupted at node %s", promptID, data.NodeID))
		}
		return false, newError(KindExecution, "await", fmt.Errorf("prompt %s failed at node %s (%s): %s %s",
			promptID, data.NodeID, data.NodeType, data.ExceptionType, data.ExceptionMessage))
	}
	return false, nil
}
