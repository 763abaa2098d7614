package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"reef-chat/client"
	"reef-chat/domain/chat"
)

var _ client.Viewport = (*TerminalView)(nil)

// TerminalView renders the message window as lines on a terminal. One
// message is one line, so content height is the line count and the scroll
// offset is a line index. That is coarse but honors the anchoring contract
// the engine relies on.
type TerminalView struct {
	out       io.Writer
	selfName  string
	messages  []chat.Message
	scrollTop int
}

func NewTerminalView(out io.Writer, selfName string) *TerminalView {
	return &TerminalView{out: out, selfName: selfName}
}

func (v *TerminalView) Refresh(messages []chat.Message) {
	v.messages = messages
	fmt.Fprintln(v.out, strings.Repeat("-", 60))
	for _, message := range messages {
		fmt.Fprintln(v.out, v.renderLine(message, false))
	}
}

func (v *TerminalView) renderLine(message chat.Message, highlighted bool) string {
	body := message.Text
	if message.Kind == chat.KindMedia {
		body = fmt.Sprintf("[%s] %s", message.MediaKind, message.MediaURL)
	}
	line := fmt.Sprintf("[%s] %s: %s",
		message.CreatedAt.Format(time.TimeOnly), message.SenderDisplayName, body)

	switch {
	case highlighted:
		return color.New(color.BgBlack, color.FgYellow).Render(line)
	case message.SenderDisplayName == v.selfName:
		return color.New(color.FgCyan).Render(line)
	case message.IsGuest:
		return color.New(color.FgGray).Render(line)
	default:
		return line
	}
}

func (v *TerminalView) ContentHeight() int {
	return len(v.messages)
}

func (v *TerminalView) ScrollTop() int {
	return v.scrollTop
}

func (v *TerminalView) SetScrollTop(offset int) {
	v.scrollTop = offset
}

func (v *TerminalView) ScrollToBottom() {
	v.scrollTop = len(v.messages)
}

// ScrollTo re-renders with the deep-link target emphasized.
func (v *TerminalView) ScrollTo(id uuid.UUID) {
	for index, message := range v.messages {
		if message.ID == id {
			v.scrollTop = index
			fmt.Fprintln(v.out, v.renderLine(message, true))
			return
		}
	}
}

func (v *TerminalView) Notice(text string) {
	fmt.Fprintln(v.out, color.New(color.FgMagenta).Render("* "+text))
}

// Status prints the typing indicator and unread badge when either is set.
func (v *TerminalView) Status(typingName string, unread int) {
	if typingName != "" {
		fmt.Fprintln(v.out, color.New(color.FgGray).Render(typingName+" is typing..."))
	}
	if unread > 0 {
		fmt.Fprintln(v.out, color.New(color.FgGreen).Render(fmt.Sprintf("%d unread (/latest to jump)", unread)))
	}
}

// Presence prints the current room roster and the per-room occupancy table.
func (v *TerminalView) Presence(users []string, counts map[string]int) {
	if len(users) > 0 {
		fmt.Fprintln(v.out, color.New(color.FgBlue).Render("online: "+strings.Join(users, ", ")))
	}
	if len(counts) == 0 {
		return
	}

	table := tablewriter.NewWriter(v.out)
	table.SetHeader([]string{"Room", "Online"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rooms := make([]string, 0, len(counts))
	for room := range counts {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	for _, room := range rooms {
		table.Append([]string{room, fmt.Sprintf("%d", counts[room])})
	}
	table.Render()
}
