package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/roundhouse/internal/message"
)

type capturingPublisher struct {
	mu   sync.Mutex
	msgs []*message.Message
}

func (p *capturingPublisher) Publish(_ context.Context, msg *message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturingPublisher) last() *message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return nil
	}
	return p.msgs[len(p.msgs)-1]
}

func TestUtteranceEndpointPublishesEvent(t *testing.T) {
	pub := &capturingPublisher{}
	s := New(0, pub)

	req := httptest.NewRequest(http.MethodPost, "/utterance",
		strings.NewReader(`{"utterances":["turn on the lights"],"lang":"es-es","session_id":"conv-1"}`))
	rec := httptest.NewRecorder()
	s.handleUtterance(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "message_id")

	msg := pub.last()
	require.NotNil(t, msg)
	assert.Equal(t, message.TypeUtterance, msg.Type)
	assert.Equal(t, []string{"turn on the lights"}, msg.Utterances())
	assert.Equal(t, "es-es", msg.Data[message.KeyLang])
	assert.Equal(t, "conv-1", msg.SessionID())
	assert.NotEmpty(t, msg.ID())
}

func TestUtteranceEndpointRejectsEmptyCandidates(t *testing.T) {
	pub := &capturingPublisher{}
	s := New(0, pub)

	req := httptest.NewRequest(http.MethodPost, "/utterance",
		strings.NewReader(`{"utterances":[]}`))
	rec := httptest.NewRecorder()
	s.handleUtterance(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, pub.last())
}

func TestContextEndpointActions(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantType string
		wantCode int
	}{
		{"add", `{"action":"add","context":"kitchen","word":"there"}`, message.TypeContextAdd, http.StatusAccepted},
		{"remove", `{"action":"remove","context":"kitchen"}`, message.TypeContextRemove, http.StatusAccepted},
		{"clear", `{"action":"clear"}`, message.TypeContextClear, http.StatusAccepted},
		{"add without tag", `{"action":"add"}`, "", http.StatusBadRequest},
		{"unknown action", `{"action":"poke"}`, "", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub := &capturingPublisher{}
			s := New(0, pub)

			req := httptest.NewRequest(http.MethodPost, "/context", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			s.handleContext(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantType != "" {
				require.NotNil(t, pub.last())
				assert.Equal(t, tc.wantType, pub.last().Type)
			} else {
				assert.Nil(t, pub.last())
			}
		})
	}
}
