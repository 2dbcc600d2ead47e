// Package app is the root Bubble Tea model of the terminal client.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sahilm/fuzzy"

	"github.com/yamca/yamca/internal/event"
	"github.com/yamca/yamca/internal/eventbus"
	"github.com/yamca/yamca/internal/protocol"
	"github.com/yamca/yamca/internal/session"
	"github.com/yamca/yamca/internal/topics"
	"github.com/yamca/yamca/internal/tui/theme"
	"github.com/yamca/yamca/internal/tui/views/eventlog"
	"github.com/yamca/yamca/internal/tui/views/help"
	"github.com/yamca/yamca/internal/tui/views/posts"
	"github.com/yamca/yamca/internal/tui/views/status"
	"github.com/yamca/yamca/internal/tui/views/topiclist"
)

const maxSuggestions = 5

// Session is the part of *session.Session the UI drives.
type Session interface {
	AddListener(l event.Listener) eventbus.Registration
	MustRemoveListener(reg eventbus.Registration)
	SwitchToNewProfile(ctx context.Context, name string) error
	SwitchToExistingProfile(ctx context.Context, name string) error
	CreateTopic(topic string) error
	ListenForTopic(topic string) error
	StopListening(topic string) error
	DeleteTopic(topic string) error
	Post(topic, body string) error
	State() session.State
	Endpoint() session.Endpoint
	ProfileName() string
	Topics() []string
}

// Directory reads the broker's topic listing and post history.
type Directory interface {
	Topics(ctx context.Context) ([]protocol.TopicInfo, error)
	Posts(ctx context.Context, topic string) ([]protocol.Post, error)
}

// Screen identifies the main screen.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenTopics
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayEvents
	OverlayPosts
)

// Prompt identifies the active input line on the topic screen.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptFilter
	PromptCreate
	PromptListen
	PromptPost
	PromptDelete
)

// Options tune the UI.
type Options struct {
	// Timeout bounds a profile switch, including the broker dial.
	Timeout     time.Duration
	MailboxSize int
	// HelpStyle is a glamour style name, or help.StyleAuto.
	HelpStyle string
}

// DefaultOptions returns the options used when fields are left zero.
func DefaultOptions() Options {
	return Options{Timeout: 15 * time.Second, MailboxSize: 256, HelpStyle: help.StyleAuto}
}

type eventMsg struct{ d topics.Delivery }

type mailboxClosedMsg struct{}

type profileMsg struct {
	name   string
	create bool
	err    error
}

type directoryMsg struct {
	names []string
	err   error
}

type postsMsg struct {
	topic string
	posts []protocol.Post
	err   error
}

// subscription is shared by every copy of the model so the mailbox is
// unregistered exactly once.
type subscription struct {
	once    sync.Once
	mailbox *topics.Mailbox
	reg     eventbus.Registration
	cancel  context.CancelFunc
}

func (s *subscription) close(sess Session) {
	s.once.Do(func() {
		sess.MustRemoveListener(s.reg)
		s.mailbox.Close()
		s.cancel()
	})
}

// Model is the root Bubble Tea model. Update is the only code that touches
// the topic view.
type Model struct {
	sess   Session
	dir    Directory
	opts   Options
	ctx    context.Context
	sub    *subscription
	logger zerolog.Logger

	keys    KeyMap
	width   int
	height  int
	screen  Screen
	overlay Overlay

	view     *topics.View
	seedMark uint64 // deliveries at or below this are already in view

	// Login screen.
	login     textinput.Model
	create    bool
	loginErr  error
	switching bool

	// Topic screen.
	prompt      Prompt
	input       textinput.Model
	deleting    string
	directory   []string
	suggestions []string
	flash       string
	animating   bool

	// Sub-views.
	statusBar status.Model
	list      topiclist.Model
	events    eventlog.Model
	posts     posts.Model
	help      *help.Model
}

// New creates the root model and subscribes it to sess. A Ready session
// starts on the topic screen; otherwise the login screen asks for a profile.
func New(sess Session, dir Directory, opts Options) Model {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = def.MailboxSize
	}
	if opts.HelpStyle == "" {
		opts.HelpStyle = def.HelpStyle
	}

	ctx, cancel := context.WithCancel(context.Background())
	mb := topics.NewMailbox(opts.MailboxSize)
	sub := &subscription{mailbox: mb, cancel: cancel}
	sub.reg = sess.AddListener(mb)

	login := textinput.New()
	login.Placeholder = "profile name"
	login.Prompt = "profile> "
	login.CharLimit = 64

	input := textinput.New()
	input.CharLimit = 512

	m := Model{
		sess:      sess,
		dir:       dir,
		opts:      opts,
		ctx:       ctx,
		sub:       sub,
		logger:    log.With().Str("component", "tui").Logger(),
		keys:      DefaultKeyMap(),
		view:      topics.NewView(),
		login:     login,
		input:     input,
		statusBar: status.New(),
		list:      topiclist.New(),
		events:    eventlog.New(),
		help:      help.New(opts.HelpStyle),
	}

	if sess.State() == session.Ready {
		m.screen = ScreenTopics
		m.seed()
	} else {
		m.screen = ScreenLogin
		m.login.Focus()
	}
	m.refresh()
	return m
}

// Init starts draining the mailbox.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForEvent(m.ctx, m.sub.mailbox)}
	if m.screen == ScreenLogin {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// waitForEvent hands the next queued lifecycle event to Update.
func waitForEvent(ctx context.Context, mb *topics.Mailbox) tea.Cmd {
	return func() tea.Msg {
		d, ok := mb.Next(ctx)
		if !ok {
			return mailboxClosedMsg{}
		}
		return eventMsg{d: d}
	}
}

func switchProfile(ctx context.Context, sess Session, name string, create bool, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		var err error
		if create {
			err = sess.SwitchToNewProfile(ctx, name)
		} else {
			err = sess.SwitchToExistingProfile(ctx, name)
		}
		return profileMsg{name: name, create: create, err: err}
	}
}

func fetchDirectory(ctx context.Context, dir Directory, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		infos, err := dir.Topics(ctx)
		if err != nil {
			return directoryMsg{err: err}
		}
		names := make([]string, len(infos))
		for i, t := range infos {
			names[i] = t.Name
		}
		return directoryMsg{names: names}
	}
}

func fetchPosts(ctx context.Context, dir Directory, topic string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ps, err := dir.Posts(ctx, topic)
		return postsMsg{topic: topic, posts: ps, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.list.Width = msg.Width
		m.list.Height = max(msg.Height-9, 1)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.handleEvent(msg.d)
		anim := m.animate()
		return m, tea.Batch(waitForEvent(m.ctx, m.sub.mailbox), anim)

	case mailboxClosedMsg:
		return m, nil

	case profileMsg:
		return m.handleProfile(msg)

	case directoryMsg:
		if msg.err != nil {
			m.events.AddError("list server topics", msg.err)
			return m, nil
		}
		m.directory = msg.names
		m.updateSuggestions()
		return m, nil

	case postsMsg:
		m.handlePosts(msg)
		return m, nil

	case topiclist.FrameMsg:
		if m.list.Step() {
			return m, topiclist.Tick()
		}
		m.animating = false
		return m, nil
	}

	if m.screen == ScreenLogin {
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		return m, cmd
	}
	if m.prompt != PromptNone && m.prompt != PromptDelete {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleEvent logs every delivery and applies those newer than the last
// seed to the view.
func (m *Model) handleEvent(d topics.Delivery) {
	e := d.Event
	m.events.AddEvent(e)
	if d.Seq <= m.seedMark {
		return
	}
	if m.view.Apply(e) {
		m.refresh()
	}
}

// handlePosts shows a fetched history. Reading a topic clears its unread
// counter only once the posts are on screen.
func (m *Model) handlePosts(msg postsMsg) {
	if m.overlay != OverlayPosts || msg.topic != m.posts.Topic {
		return
	}
	m.posts.Set(msg.posts, msg.err)
	if msg.err != nil {
		m.events.AddError("read "+msg.topic, msg.err)
		return
	}
	m.view.MarkRead(msg.topic)
	m.refresh()
}

func (m Model) handleProfile(msg profileMsg) (tea.Model, tea.Cmd) {
	m.statusBar.Pending = ""
	if msg.err != nil {
		m.loginErr = msg.err
		m.events.AddError("switch profile", msg.err)
		m.logger.Warn().Err(msg.err).Str("profile", msg.name).Msg("profile switch failed")
		m.refresh()
		return m, nil
	}

	m.switching = false
	m.loginErr = nil
	m.login.Reset()
	m.login.Blur()
	m.screen = ScreenTopics
	m.view = topics.NewView()
	m.seed()
	m.refresh()

	verb := "loaded"
	if msg.create {
		verb = "created"
	}
	m.events.Info(fmt.Sprintf("profile %q %s", msg.name, verb))
	cmd := m.animate()
	return m, cmd
}

// seed replaces the view with the session's topics. Deliveries already
// queued when the mark is taken are reflected in the snapshot or belong to
// a previous profile.
func (m *Model) seed() {
	m.seedMark = m.sub.mailbox.Mark()
	m.view.Seed(m.sess.Topics())
}

func (m *Model) refresh() {
	m.list.SetRows(m.view.Rows())
	m.statusBar.State = m.sess.State()
	m.statusBar.Profile = m.sess.ProfileName()
	if ep := m.sess.Endpoint(); ep.Host != "" {
		m.statusBar.Endpoint = ep.String()
	} else {
		m.statusBar.Endpoint = ""
	}
	m.statusBar.SetCounts(m.view.Topics.Len(), m.view.Unread.Total())
}

// animate starts the scroll animation if the list has somewhere to go.
func (m *Model) animate() tea.Cmd {
	if m.animating || !m.list.Animating() {
		return nil
	}
	m.animating = true
	return topiclist.Tick()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Interrupt) {
		return m.quit()
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayEvents && key.Matches(msg, m.keys.Up):
			m.events.ScrollUp(1)
		case m.overlay == OverlayEvents && key.Matches(msg, m.keys.Down):
			m.events.ScrollDown(1)
		case m.overlay == OverlayPosts && key.Matches(msg, m.keys.Up):
			m.posts.ScrollUp(1)
		case m.overlay == OverlayPosts && key.Matches(msg, m.keys.Down):
			m.posts.ScrollDown(1)
		}
		return m, nil
	}

	if m.screen == ScreenLogin {
		return m.handleLoginKey(msg)
	}
	if m.prompt != PromptNone {
		return m.handlePromptKey(msg)
	}

	m.flash = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Down):
		m.list.Down()
		cmd := m.animate()
		return m, cmd

	case key.Matches(msg, m.keys.Up):
		m.list.Up()
		cmd := m.animate()
		return m, cmd

	case key.Matches(msg, m.keys.Read):
		topic, ok := m.list.Selected()
		if !ok {
			return m, nil
		}
		if m.dir == nil {
			m.view.MarkRead(topic)
			m.refresh()
			return m, nil
		}
		m.overlay = OverlayPosts
		m.posts.Open(topic)
		return m, fetchPosts(m.ctx, m.dir, topic, m.opts.Timeout)

	case key.Matches(msg, m.keys.Filter):
		return m.openPrompt(PromptFilter, "filter> ", m.list.Filter())

	case key.Matches(msg, m.keys.Create):
		return m.openPrompt(PromptCreate, "create> ", "")

	case key.Matches(msg, m.keys.Listen):
		m2, cmd := m.openPrompt(PromptListen, "listen> ", "")
		if m.dir != nil {
			cmd = tea.Batch(cmd, fetchDirectory(m.ctx, m.dir, m.opts.Timeout))
		}
		return m2, cmd

	case key.Matches(msg, m.keys.Post):
		topic, ok := m.list.Selected()
		if !ok {
			m.flash = "select a topic to post to"
			return m, nil
		}
		return m.openPrompt(PromptPost, topic+"> ", "")

	case key.Matches(msg, m.keys.Stop):
		if topic, ok := m.list.Selected(); ok {
			m.issue("stop listening", m.sess.StopListening(topic))
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if topic, ok := m.list.Selected(); ok {
			m.prompt = PromptDelete
			m.deleting = topic
		}
		return m, nil

	case key.Matches(msg, m.keys.Profile):
		m.screen = ScreenLogin
		m.switching = true
		m.loginErr = nil
		m.login.Reset()
		cmd := m.login.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Events):
		m.overlay = OverlayEvents
		m.events.Clear()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	}

	return m, nil
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.statusBar.Pending != "" {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Escape):
		if m.switching && m.sess.State() == session.Ready {
			m.switching = false
			m.screen = ScreenTopics
			m.login.Blur()
		}
		return m, nil

	case key.Matches(msg, m.keys.Complete):
		m.create = !m.create
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		name := m.login.Value()
		if name == "" {
			m.loginErr = errors.New("enter a profile name")
			return m, nil
		}
		m.loginErr = nil
		m.statusBar.Pending = "connecting"
		return m, switchProfile(m.ctx, m.sess, name, m.create, m.opts.Timeout)
	}

	var cmd tea.Cmd
	m.login, cmd = m.login.Update(msg)
	return m, cmd
}

func (m Model) openPrompt(p Prompt, label, value string) (Model, tea.Cmd) {
	m.prompt = p
	m.input.Prompt = label
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.suggestions = nil
	cmd := m.input.Focus()
	return m, cmd
}

func (m *Model) closePrompt() {
	m.prompt = PromptNone
	m.deleting = ""
	m.suggestions = nil
	m.input.Blur()
	m.input.Reset()
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt == PromptDelete {
		if key.Matches(msg, m.keys.Confirm) {
			m.issue("delete", m.sess.DeleteTopic(m.deleting))
		}
		m.closePrompt()
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Escape):
		if m.prompt == PromptFilter {
			m.list.SetFilter("")
		}
		m.closePrompt()
		cmd := m.animate()
		return m, cmd

	case key.Matches(msg, m.keys.Complete):
		if m.prompt == PromptListen && len(m.suggestions) > 0 {
			m.input.SetValue(m.suggestions[0])
			m.input.CursorEnd()
			m.updateSuggestions()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		m.submitPrompt(m.input.Value())
		m.closePrompt()
		cmd := m.animate()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	switch m.prompt {
	case PromptFilter:
		m.list.SetFilter(m.input.Value())
		anim := m.animate()
		return m, tea.Batch(cmd, anim)
	case PromptListen:
		m.updateSuggestions()
	}
	return m, cmd
}

func (m *Model) submitPrompt(value string) {
	switch m.prompt {
	case PromptFilter:
		m.list.SetFilter(value)
	case PromptCreate:
		m.issue("create", m.sess.CreateTopic(value))
	case PromptListen:
		m.issue("listen", m.sess.ListenForTopic(value))
	case PromptPost:
		if topic, ok := m.list.Selected(); ok {
			m.issue("post", m.sess.Post(topic, value))
		}
	}
}

// issue reports an operation rejected before it reached the session's
// queue. Accepted operations report through lifecycle events.
func (m *Model) issue(action string, err error) {
	if err == nil {
		return
	}
	m.flash = fmt.Sprintf("%s: %v", action, err)
	m.events.AddError(action, err)
}

// updateSuggestions ranks broker topics not yet listened to against the
// listen prompt.
func (m *Model) updateSuggestions() {
	m.suggestions = nil
	if m.prompt != PromptListen || len(m.directory) == 0 {
		return
	}
	candidates := make([]string, 0, len(m.directory))
	for _, name := range m.directory {
		if !m.view.Topics.Contains(name) {
			candidates = append(candidates, name)
		}
	}
	q := m.input.Value()
	if q == "" {
		slices.Sort(candidates)
		m.suggestions = candidates[:min(len(candidates), maxSuggestions)]
		return
	}
	for _, match := range fuzzy.Find(q, candidates) {
		if match.Str == q {
			continue
		}
		m.suggestions = append(m.suggestions, match.Str)
		if len(m.suggestions) == maxSuggestions {
			break
		}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.sub.close(m.sess)
	return m, tea.Quit
}

// Close unsubscribes the model from the session. It is safe to call after
// the model has quit.
func (m Model) Close() {
	m.sub.close(m.sess)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayHelp:
		return m.help.View(m.keys.HelpSections(), m.width, m.height)
	case OverlayEvents:
		return m.events.View(m.width, m.height)
	case OverlayPosts:
		return m.posts.View(m.width, m.height, m.sess.ProfileName())
	}

	if m.screen == ScreenLogin {
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.renderLogin())
	}

	sections := []string{m.statusBar.View(), m.list.View()}
	if p := m.renderPrompt(); p != "" {
		sections = append(sections, p)
	}
	if m.flash != "" {
		sections = append(sections, theme.StyleError.Render("  "+m.flash))
	}
	footer := "  j/k:navigate  enter:read  /:filter  c:create  l:listen  p:post  s:stop  x:delete  P:profile  e:events  ?:help  q:quit"
	if n := m.events.Failed; n > 0 {
		footer += theme.StyleError.Render(fmt.Sprintf("  %d failed", n))
	}
	sections = append(sections, theme.StyleDimmed.Render(footer))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderLogin() string {
	mode := "existing profile"
	if m.create {
		mode = "new profile"
	}

	lines := []string{
		theme.StyleHeader.Render("LOG IN"),
		"",
		m.login.View(),
		theme.StyleDimmed.Render("  mode: " + mode + "  (tab to toggle)"),
	}
	if m.loginErr != nil {
		lines = append(lines, theme.StyleError.Render("  "+m.loginErr.Error()))
	}
	hint := "  enter:log in  ctrl+c:quit"
	if m.switching && m.sess.State() == session.Ready {
		hint = "  enter:switch  esc:back  ctrl+c:quit"
	}
	lines = append(lines, "", theme.StyleDimmed.Render(hint))

	return theme.StyleBorder.
		Width(max(m.width-4, 30)).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderPrompt() string {
	switch m.prompt {
	case PromptNone:
		return ""
	case PromptDelete:
		return lipgloss.NewStyle().Foreground(theme.ColorWarning).
			Render(fmt.Sprintf("  delete topic %q for everyone? y/n", m.deleting))
	}

	lines := []string{"  " + m.input.View()}
	for _, s := range m.suggestions {
		lines = append(lines, theme.StyleDimmed.Render("    "+s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
