package reviewconsole

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"opsgate/internal/ports"
	"opsgate/internal/usecase/approvals"
)

const maxShownActions = 5
const maxActionLogLines = 8

type Options struct {
	Reviewer        string
	RefreshInterval time.Duration
}

// reviewModel drives an interactive review queue: pending requests on top,
// the selected request's audit trail below.
type reviewModel struct {
	ctx             context.Context
	service         *approvals.Service
	reviewer        string
	refreshInterval time.Duration

	requests      []ports.RequestRecord
	selectedIndex int
	detail        approvals.RequestDetail
	hasDetail     bool
	status        string
	actionLog     []string

	rejecting   bool
	inputBuffer string
}

type requestsLoadedMsg struct {
	items []ports.RequestRecord
	err   error
}

type detailLoadedMsg struct {
	requestID string
	detail    approvals.RequestDetail
	err       error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action    string
	requestID string
	err       error
}

func NewReviewModel(ctx context.Context, service *approvals.Service, options Options) tea.Model {
	reviewer := strings.TrimSpace(options.Reviewer)
	if reviewer == "" {
		reviewer = "supervisor"
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &reviewModel{
		ctx:             ctx,
		service:         service,
		reviewer:        reviewer,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *reviewModel) Init() tea.Cmd {
	return tea.Batch(m.loadRequestsCmd(), m.tickCmd())
}

func (m *reviewModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadRequestsCmd(), m.tickCmd())
	case requestsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.requests = msg.items
		if len(m.requests) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "queue empty"
			return m, nil
		}
		if m.selectedIndex >= len(m.requests) {
			m.selectedIndex = len(m.requests) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d pending", len(m.requests))
		return m, m.loadSelectedDetailCmd()
	case detailLoadedMsg:
		if !m.isSelected(msg.requestID) {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			m.status = "detail load failed: " + msg.err.Error()
			return m, nil
		}
		m.detail = msg.detail
		m.hasDetail = true
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendActionLog(msg.action, msg.requestID, msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.requestID)
			m.appendActionLog(msg.action, msg.requestID, nil)
		}
		return m, m.loadRequestsCmd()
	case tea.KeyMsg:
		if m.rejecting {
			return m.updateRejectInput(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadRequestsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.requests)-1 {
				m.selectedIndex++
				return m, m.loadSelectedDetailCmd()
			}
			return m, nil
		case "a":
			return m, m.approveCmd()
		case "x":
			if _, ok := m.selectedRequest(); ok {
				m.rejecting = true
				m.inputBuffer = ""
			}
			return m, nil
		case "c":
			return m, m.cancelCmd()
		}
	}
	return m, nil
}

func (m *reviewModel) updateRejectInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.rejecting = false
		m.inputBuffer = ""
		return m, nil
	case "enter":
		reason := strings.TrimSpace(m.inputBuffer)
		m.rejecting = false
		m.inputBuffer = ""
		if reason == "" {
			m.status = "rejection needs a reason"
			return m, nil
		}
		return m, m.rejectCmd(reason)
	case "backspace":
		if len(m.inputBuffer) > 0 {
			m.inputBuffer = m.inputBuffer[:len(m.inputBuffer)-1]
		}
		return m, nil
	default:
		if msg.Type == tea.KeyRunes || msg.String() == " " {
			m.inputBuffer += string(msg.Runes)
		}
		return m, nil
	}
}

func (m *reviewModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Approval Review Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf("reviewer=%s refresh=%s", m.reviewer, m.refreshInterval)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Pending"))
	builder.WriteString("\n")
	if len(m.requests) == 0 {
		builder.WriteString(dimStyle.Render("- no pending requests"))
		builder.WriteString("\n\n")
	} else {
		for index, record := range m.requests {
			line := fmt.Sprintf("%s [%s/%s] by=%s title=%s",
				shortID(record.RequestID), record.RequestType, record.Priority, record.RequestedBy, record.Title)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	} else {
		record := m.detail.Request
		builder.WriteString(fmt.Sprintf("Request: %s\n", record.RequestID))
		builder.WriteString(fmt.Sprintf("Status: %s  Expires: %s\n", record.Status, record.ExpiresAt.Format("2006-01-02 15:04")))
		builder.WriteString(fmt.Sprintf("Requested by %s for %s\n", record.RequestedBy, record.RequestedFor))
		if record.ValidationFailureReason != "" {
			builder.WriteString(fmt.Sprintf("Failure: %s\n", record.ValidationFailureReason))
		}
		builder.WriteString("\nRecent actions:\n")
		actions := m.detail.Actions
		if len(actions) == 0 {
			builder.WriteString("- none\n")
		} else {
			start := len(actions) - maxShownActions
			if start < 0 {
				start = 0
			}
			for _, action := range actions[start:] {
				actor := "system"
				if action.Actor != nil {
					actor = *action.Actor
				}
				builder.WriteString(fmt.Sprintf("- a%d %s %s\n", action.ActionID, action.ActionType, actor))
			}
		}
		builder.WriteString("\n")
	}

	if m.rejecting {
		builder.WriteString(sectionStyle.Render("Rejection reason"))
		builder.WriteString("\n")
		builder.WriteString("> " + m.inputBuffer + "_\n\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + m.status)
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Action Log"))
	builder.WriteString("\n")
	if len(m.actionLog) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.actionLog {
			builder.WriteString("- " + line + "\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  a approve  x reject  c cancel  q quit"))
	return builder.String()
}

func (m *reviewModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *reviewModel) loadRequestsCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.ListPending(m.ctx, 0)
		if err != nil {
			return requestsLoadedMsg{err: err}
		}
		return requestsLoadedMsg{items: items}
	}
}

func (m *reviewModel) loadSelectedDetailCmd() tea.Cmd {
	record, ok := m.selectedRequest()
	if !ok {
		return nil
	}
	requestID := record.RequestID
	return func() tea.Msg {
		detail, err := m.service.GetRequest(m.ctx, requestID)
		if err != nil {
			return detailLoadedMsg{requestID: requestID, err: err}
		}
		return detailLoadedMsg{requestID: requestID, detail: detail}
	}
}

func (m *reviewModel) approveCmd() tea.Cmd {
	record, ok := m.selectedRequest()
	if !ok {
		m.status = "nothing selected"
		return nil
	}
	requestID := record.RequestID
	m.status = "approving..."
	return func() tea.Msg {
		_, err := m.service.Approve(m.ctx, approvals.ApproveInput{
			RequestID: requestID,
			Reviewer:  m.reviewer,
			Notes:     "approved from console",
		})
		return actionDoneMsg{action: "approve", requestID: shortID(requestID), err: err}
	}
}

func (m *reviewModel) rejectCmd(reason string) tea.Cmd {
	record, ok := m.selectedRequest()
	if !ok {
		m.status = "nothing selected"
		return nil
	}
	requestID := record.RequestID
	m.status = "rejecting..."
	return func() tea.Msg {
		_, err := m.service.Reject(m.ctx, approvals.RejectInput{
			RequestID: requestID,
			Reviewer:  m.reviewer,
			Reason:    reason,
		})
		return actionDoneMsg{action: "reject", requestID: shortID(requestID), err: err}
	}
}

func (m *reviewModel) cancelCmd() tea.Cmd {
	record, ok := m.selectedRequest()
	if !ok {
		m.status = "nothing selected"
		return nil
	}
	requestID := record.RequestID
	m.status = "cancelling..."
	return func() tea.Msg {
		_, err := m.service.Cancel(m.ctx, approvals.CancelInput{
			RequestID:   requestID,
			CancelledBy: m.reviewer,
			Reason:      "cancelled from console",
		})
		return actionDoneMsg{action: "cancel", requestID: shortID(requestID), err: err}
	}
}

func (m *reviewModel) selectedRequest() (ports.RequestRecord, bool) {
	if len(m.requests) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.requests) {
		return ports.RequestRecord{}, false
	}
	return m.requests[m.selectedIndex], true
}

func (m *reviewModel) isSelected(requestID string) bool {
	record, ok := m.selectedRequest()
	return ok && record.RequestID == requestID
}

func (m *reviewModel) appendActionLog(action string, requestID string, err error) {
	line := fmt.Sprintf("%s %s %s", time.Now().Format("15:04:05"), action, requestID)
	if err != nil {
		line += " failed: " + err.Error()
	}
	m.actionLog = append(m.actionLog, line)
	if len(m.actionLog) > maxActionLogLines {
		m.actionLog = m.actionLog[len(m.actionLog)-maxActionLogLines:]
	}
}

func shortID(requestID string) string {
	if len(requestID) > 8 {
		return requestID[:8]
	}
	return requestID
}
