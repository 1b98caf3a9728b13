package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionID(t *testing.T) {
	assert.Equal(t, "slack_C024BE91L_U2147483697", SessionID("slack", "C024BE91L", "U2147483697"))
	assert.Equal(t, SessionID("slack", "C1", "U1"), SessionID("slack", "C1", "U1"))
	assert.NotEqual(t, SessionID("slack", "C1", "U1"), SessionID("slack", "C2", "U1"))
}

func TestEscalationText(t *testing.T) {
	assert.Equal(t, "Agent escalated: needs a human", EscalationText("needs a human"))
	assert.Equal(t, "Agent escalated: No specific message.", EscalationText(""))
	assert.Equal(t, "Agent escalated: No specific message.", (&EscalationError{}).Error())
}

func TestFuncCollaborator(t *testing.T) {
	tests := []struct {
		name    string
		fn      Func
		want    string
		wantErr string
	}{
		{
			name: "reply",
			fn:   func(ctx context.Context, req Request) (string, error) { return "echo: " + req.Input, nil },
			want: "echo: hi",
		},
		{
			name: "escalation becomes a chunk",
			fn: func(ctx context.Context, req Request) (string, error) {
				return "", &EscalationError{Message: "billing question"}
			},
			want: "Agent escalated: billing question",
		},
		{
			name: "wrapped escalation",
			fn: func(ctx context.Context, req Request) (string, error) {
				return "", errors.Join(errors.New("ctx"), &EscalationError{})
			},
			want: "Agent escalated: No specific message.",
		},
		{
			name:    "failure",
			fn:      func(ctx context.Context, req Request) (string, error) { return "", errors.New("backend down") },
			wantErr: "backend down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := tt.fn.Invoke(context.Background(), Request{Input: "hi"})
			require.NoError(t, err)
			got, err := collect(t, ch)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectDrainsAfterError(t *testing.T) {
	ch := make(chan Chunk, 3)
	ch <- Chunk{Text: "a"}
	ch <- Chunk{Err: errors.New("first")}
	ch <- Chunk{Text: "b"}
	close(ch)

	got, err := Collect(context.Background(), ch)
	assert.EqualError(t, err, "first")
	assert.Equal(t, "ab", got)
	_, open := <-ch
	assert.False(t, open)
}
