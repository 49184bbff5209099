package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/clientsync"
	"dm-service/internal/models"
)

func TestParseFlags(t *testing.T) {
	_, err := parseFlags(nil)
	require.Error(t, err)

	opts, err := parseFlags([]string{"-email", "alice@example.com", "-open", "bob", "-server", "http://dm:5001"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", opts.email)
	assert.Equal(t, "bob", opts.open)
	assert.Equal(t, "http://dm:5001", opts.server)
	assert.NotEmpty(t, opts.chatList)
}

func TestReadPasswordFromPipe(t *testing.T) {
	in := strings.NewReader("Str0ng!Pass\nhello\n")
	reader := bufio.NewReader(in)

	pw, err := readPassword(in, reader, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "Str0ng!Pass", pw)

	next, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", next)
}

func TestPrintMessage(t *testing.T) {
	state := clientsync.State{Me: models.PublicUser{ID: "alice"}}
	var out bytes.Buffer

	printMessage(&out, state, models.Message{
		ID:        "m1",
		SenderID:  "alice",
		Text:      "hi",
		Edited:    true,
		Reaction:  "👍",
		CreatedAt: time.Now(),
	})

	assert.Contains(t, out.String(), "m1 me: hi (edited) 👍")
}
