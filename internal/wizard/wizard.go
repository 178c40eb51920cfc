package wizard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lockplane/storemigrate/internal/config"
	"github.com/lockplane/storemigrate/internal/tui"
)

var fieldLabels = [fieldCount]string{
	fieldName:       "Store name",
	fieldEngine:     "Engine (sqlite or bolt)",
	fieldPath:       "Store file path",
	fieldFamily:     "Schema family (defaults to the store name)",
	fieldVersions:   "Versions, oldest first",
	fieldCatalogDir: "Catalog directory",
}

type fileCreationResultMsg struct {
	result *InitResult
	err    error
}

// New creates a wizard that writes its files into dir
func New(dir string, force bool) WizardModel {
	m := WizardModel{
		state:  StateStoreDetails,
		dir:    dir,
		force:  force,
		errors: make(map[int]string),
	}
	m.initializeInputs()
	return m
}

// Init initializes the wizard (Bubble Tea Init)
func (m WizardModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles state transitions (Bubble Tea Update)
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up", "shift+tab":
			return m.handleUp()

		case "down", "tab":
			return m.handleDown()

		case "q", "esc":
			if m.state == StateDone || m.state == StateError {
				return m, tea.Quit
			}
			return m.handleTextInput(msg)

		default:
			return m.handleTextInput(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case fileCreationResultMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = StateError
			return m, nil
		}
		m.result = msg.result
		m.state = StateDone
		return m, nil
	}

	return m, nil
}

// View renders the wizard UI (Bubble Tea View)
func (m WizardModel) View() string {
	switch m.state {
	case StateStoreDetails:
		return m.renderStoreDetails()
	case StateCreating:
		return m.renderCreating()
	case StateDone:
		return m.renderDone()
	case StateError:
		return m.renderError()
	default:
		return "Unknown state"
	}
}

// Result is what the wizard created, once it is done.
func (m WizardModel) Result() *InitResult { return m.result }

// Err is the error that stopped the wizard, if any.
func (m WizardModel) Err() error { return m.err }

// State transition handlers

func (m WizardModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateStoreDetails:
		if m.focusIndex < len(m.inputs)-1 {
			m.focusIndex++
			m.updateInputFocus()
			return m, nil
		}
		store, ok := m.collectInputValues()
		if !ok {
			return m, nil
		}
		m.state = StateCreating
		return m, m.createFiles(store)

	case StateDone, StateError:
		return m, tea.Quit
	}
	return m, nil
}

func (m WizardModel) handleUp() (tea.Model, tea.Cmd) {
	if m.state == StateStoreDetails && m.focusIndex > 0 {
		m.focusIndex--
		m.updateInputFocus()
	}
	return m, nil
}

func (m WizardModel) handleDown() (tea.Model, tea.Cmd) {
	if m.state == StateStoreDetails && m.focusIndex < len(m.inputs)-1 {
		m.focusIndex++
		m.updateInputFocus()
	}
	return m, nil
}

func (m WizardModel) handleTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == StateStoreDetails && m.focusIndex < len(m.inputs) {
		var cmd tea.Cmd
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
		delete(m.errors, m.focusIndex)
		return m, cmd
	}
	return m, nil
}

// Input management

func (m *WizardModel) initializeInputs() {
	m.inputs = make([]textinput.Model, fieldCount)
	m.inputs[fieldName] = m.makeInput(fieldLabels[fieldName], "app")
	m.inputs[fieldEngine] = m.makeInput(fieldLabels[fieldEngine], config.EngineSQLite)
	m.inputs[fieldPath] = m.makeInput(fieldLabels[fieldPath], "data/app.sqlite")
	m.inputs[fieldFamily] = m.makeInput(fieldLabels[fieldFamily], "")
	m.inputs[fieldVersions] = m.makeInput(fieldLabels[fieldVersions], "V0")
	m.inputs[fieldCatalogDir] = m.makeInput(fieldLabels[fieldCatalogDir], defaultCatalogDir)
	m.focusIndex = 0
	m.updateInputFocus()
}

func (m *WizardModel) makeInput(placeholder, value string) textinput.Model {
	input := textinput.New()
	input.Placeholder = placeholder
	input.SetValue(value)
	return input
}

func (m *WizardModel) updateInputFocus() {
	for i := range m.inputs {
		if i == m.focusIndex {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

// collectInputValues validates every field, recording errors against the
// field they belong to. The first invalid field gets focus.
func (m *WizardModel) collectInputValues() (StoreInput, bool) {
	value := func(i int) string { return strings.TrimSpace(m.inputs[i].Value()) }

	store := StoreInput{
		Name:       value(fieldName),
		Engine:     strings.ToLower(value(fieldEngine)),
		Path:       value(fieldPath),
		Family:     value(fieldFamily),
		CatalogDir: value(fieldCatalogDir),
	}
	if store.Family == "" {
		store.Family = store.Name
	}

	m.errors = make(map[int]string)
	if err := ValidateStoreName(store.Name); err != nil {
		m.errors[fieldName] = err.Error()
	}
	if err := ValidateEngine(store.Engine); err != nil {
		m.errors[fieldEngine] = err.Error()
	}
	if err := ValidateStorePath(m.resolve(store.Path)); err != nil {
		m.errors[fieldPath] = err.Error()
	}
	versions, err := ParseVersions(value(fieldVersions))
	if err != nil {
		m.errors[fieldVersions] = err.Error()
	}
	store.Versions = versions
	if err := ValidateCatalogDir(m.resolve(store.CatalogDir)); err != nil {
		m.errors[fieldCatalogDir] = err.Error()
	}

	if len(m.errors) > 0 {
		for i := 0; i < fieldCount; i++ {
			if _, bad := m.errors[i]; bad {
				m.focusIndex = i
				break
			}
		}
		m.updateInputFocus()
		return store, false
	}
	return store, true
}

func (m WizardModel) resolve(path string) string {
	if path == "" || m.dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.dir, path)
}

func (m WizardModel) createFiles(store StoreInput) tea.Cmd {
	dir, force := m.dir, m.force
	return func() tea.Msg {
		result, err := GenerateFiles(dir, store, force)
		return fileCreationResultMsg{result: result, err: err}
	}
}

// Rendering

func (m WizardModel) renderStoreDetails() string {
	var b strings.Builder

	b.WriteString(tui.Header("storemigrate init"))
	b.WriteString("\n\n")
	b.WriteString(tui.Section("Store details"))
	b.WriteString("\n\n")

	for i, input := range m.inputs {
		b.WriteString(tui.Label.Render(fieldLabels[i]))
		b.WriteString("\n")
		b.WriteString(input.View())
		b.WriteString("\n")
		if msg, ok := m.errors[i]; ok {
			b.WriteString(tui.Error.Render("  " + tui.IconCross + " " + msg))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(tui.Hint("Tab/↑↓: move • Enter: next / create • Ctrl+C: quit"))

	return tui.Box.Render(b.String())
}

func (m WizardModel) renderCreating() string {
	var b strings.Builder

	b.WriteString(tui.Header("storemigrate init"))
	b.WriteString("\n\n")
	b.WriteString(tui.Info.Render(tui.IconWait + " Writing configuration..."))

	return tui.Box.Render(b.String())
}

func (m WizardModel) renderDone() string {
	var b strings.Builder

	b.WriteString(tui.Header("storemigrate init"))
	b.WriteString("\n\n")
	b.WriteString(tui.Success("Setup complete!"))
	b.WriteString("\n\n")

	if m.result != nil {
		b.WriteString(renderResult(m.result))
	}

	b.WriteString("\n")
	b.WriteString(tui.Tip("Add one schema per version to the family directory\n" +
		"  and mappings to the mappings directory, then run:\n" +
		"  storemigrate status"))

	b.WriteString("\n\n")
	b.WriteString(tui.Hint("Press Enter to exit"))

	return tui.Box.Render(b.String())
}

// renderResult lists what GenerateFiles touched.
func renderResult(result *InitResult) string {
	var b strings.Builder
	switch {
	case result.ConfigCreated:
		fmt.Fprintf(&b, "  %s created %s\n", tui.IconCheck, result.ConfigPath)
	case result.ConfigUpdated:
		fmt.Fprintf(&b, "  %s updated %s\n", tui.IconCheck, result.ConfigPath)
	}
	for _, dir := range result.CreatedDirs {
		fmt.Fprintf(&b, "  %s created %s\n", tui.IconCheck, dir)
	}
	if result.GitignoreUpdated {
		fmt.Fprintf(&b, "  %s .gitignore updated\n", tui.IconCheck)
	}
	return b.String()
}

func (m WizardModel) renderError() string {
	var b strings.Builder

	b.WriteString(tui.Header("storemigrate init"))
	b.WriteString("\n\n")
	b.WriteString(tui.Failure("An error occurred"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(tui.Error.Render(m.err.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(tui.Hint("Press Enter to exit"))

	return tui.Box.Render(b.String())
}

// Run starts the wizard in dir and returns what it created. A wizard the
// user quit before finishing returns a nil result and no error.
func Run(dir string, force bool, opts ...tea.ProgramOption) (*InitResult, error) {
	p := tea.NewProgram(New(dir, force), opts...)
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(WizardModel)
	return m.Result(), m.Err()
}
