package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"dm-service/internal/client"
	"dm-service/internal/clientsync"
	"dm-service/internal/models"
)

const help = `commands:
  /open <userId>         open a conversation
  /search <name>         find users
  /list                  show the chat list
  /partners              merge everyone you have messaged into the chat list
  /online                show who is online
  /request <userId>      send a chat request
  /requests              list pending chat requests
  /accept <userId>       accept a chat request
  /edit <msgId> <text>   edit one of your messages
  /react <msgId> <emoji> react to a message
  /delete <msgId>        delete one of your messages
  /clear                 delete the open conversation
  /quit
anything else is sent to the open conversation`

type shell struct {
	api    *client.API
	syncer *clientsync.Syncer
	out    io.Writer
}

func (s *shell) loop(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, help)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "/quit" {
				return nil
			}
			s.exec(ctx, line)
		}
	}
}

func (s *shell) exec(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, "/") {
		if _, err := s.syncer.Send(ctx, clientsync.SendInput{Text: line}); err != nil {
			s.fail(err)
		}
		return
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	var err error
	switch cmd {
	case "/open":
		var user models.PublicUser
		if user, err = s.api.User(ctx, rest); err == nil {
			s.syncer.Select(ctx, user)
			s.syncer.Wait()
			s.printConversation(s.syncer.State())
		}
	case "/search":
		var users []models.PublicUser
		if users, err = s.api.Search(ctx, rest); err == nil {
			for _, u := range users {
				fmt.Fprintf(s.out, "  %s  %s\n", u.ID, u.FullName)
			}
		}
	case "/list":
		state := s.syncer.State()
		for _, u := range state.ChattedUsers {
			marker := " "
			if state.IsOnline(u.ID) {
				marker = "*"
			}
			fmt.Fprintf(s.out, "%s %s  %s\n", marker, u.ID, u.FullName)
		}
	case "/partners":
		var users []models.PublicUser
		if users, err = s.api.Partners(ctx); err == nil {
			for _, u := range users {
				s.syncer.Dispatch(ctx, clientsync.ChattedUserUpserted{User: u})
			}
			fmt.Fprintf(s.out, "%d partners\n", len(users))
		}
	case "/online":
		fmt.Fprintln(s.out, strings.Join(s.syncer.State().Online, ", "))
	case "/request":
		err = s.api.SendChatRequest(ctx, rest)
	case "/requests":
		var reqs []models.PendingRequest
		if reqs, err = s.api.ChatRequests(ctx); err == nil {
			for _, r := range reqs {
				fmt.Fprintf(s.out, "  %s  %s  %s\n", r.SenderID, r.FullName, r.CreatedAt.Format("2006-01-02 15:04"))
			}
		}
	case "/accept":
		err = s.api.AcceptChatRequest(ctx, rest)
	case "/edit":
		id, text, _ := strings.Cut(rest, " ")
		err = s.syncer.Edit(ctx, id, text)
	case "/react":
		id, emoji, _ := strings.Cut(rest, " ")
		err = s.syncer.React(ctx, id, emoji)
	case "/delete":
		err = s.syncer.Delete(ctx, rest)
	case "/clear":
		if selected := s.syncer.State().Selected; selected != nil {
			err = s.syncer.DeleteChat(ctx, selected.ID)
		}
	default:
		fmt.Fprintln(s.out, help)
	}
	if err != nil {
		s.fail(err)
	}
}

func (s *shell) fail(err error) {
	fmt.Fprintf(s.out, "error: %v\n", err)
}

func (s *shell) printConversation(state clientsync.State) {
	if state.Selected == nil {
		return
	}
	fmt.Fprintf(s.out, "-- %s --\n", state.Selected.FullName)
	if state.LastError != "" {
		fmt.Fprintf(s.out, "history unavailable: %s\n", state.LastError)
	}
	for _, m := range state.Messages {
		printMessage(s.out, state, m)
	}
}

func printMessage(out io.Writer, state clientsync.State, m models.Message) {
	who := "them"
	if m.SenderID == state.Me.ID {
		who = "me"
	}
	text := m.Text
	if m.Image != "" {
		text = strings.TrimSpace(text + " [image " + m.Image + "]")
	}
	if m.Edited {
		text += " (edited)"
	}
	if m.Reaction != "" {
		text += " " + m.Reaction
	}
	fmt.Fprintf(out, "[%s] %s %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.ID, who, text)
}

func printEvent(out io.Writer, state clientsync.State, a clientsync.Action) {
	switch a := a.(type) {
	case clientsync.MessagePushed:
		if state.Selected != nil && a.Message.InConversation(state.Me.ID, state.Selected.ID) {
			printMessage(out, state, a.Message)
			return
		}
		fmt.Fprintf(out, "new message from %s\n", a.Message.SenderID)
	case clientsync.MessageUpdated:
		printMessage(out, state, a.Message)
	case clientsync.ChatRequestReceived:
		fmt.Fprintf(out, "chat request from %s\n", a.SenderID)
	case clientsync.ProfileUpdated:
		fmt.Fprintf(out, "%s updated their profile\n", a.User.FullName)
	}
}
