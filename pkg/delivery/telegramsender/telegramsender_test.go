package telegramsender_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbase/crewbase/pkg/delivery"
	"github.com/crewbase/crewbase/pkg/delivery/telegramsender"
)

// botServer stubs the two Bot API calls the sender makes: getMe during
// construction and sendMessage per delivery.
func botServer(t *testing.T, onSend func(chatID, text string)) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"crewbase","username":"crewbase_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			onSend(r.FormValue("chat_id"), r.FormValue("text"))
			io.WriteString(w, `{"ok":true,"result":{"message_id":1}}`)
		default:
			t.Errorf("unexpected bot call %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestSendDeliversToMappedChat(t *testing.T) {
	var gotChat, gotText string
	ts := botServer(t, func(chatID, text string) {
		gotChat = chatID
		gotText = text
	})

	sender, err := telegramsender.NewWithEndpoint("token", ts.URL+"/bot%s/%s",
		map[string]int64{"sam@crew.test": 42})
	require.NoError(t, err)

	err = sender.Send(context.Background(), delivery.Message{
		To:      "sam@crew.test",
		Subject: "Task activity",
		Body:    "New task: Sort donations",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", gotChat)
	assert.Contains(t, gotText, "Task activity")
	assert.Contains(t, gotText, "Sort donations")
}

func TestSendUnmappedRecipientFails(t *testing.T) {
	ts := botServer(t, func(chatID, text string) {
		t.Error("no message should be sent")
	})

	sender, err := telegramsender.NewWithEndpoint("token", ts.URL+"/bot%s/%s", nil)
	require.NoError(t, err)

	err = sender.Send(context.Background(), delivery.Message{To: "sam@crew.test", Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no telegram chat mapped")
}

func TestEmptyTokenRejected(t *testing.T) {
	_, err := telegramsender.New("", nil)
	require.Error(t, err)
}
