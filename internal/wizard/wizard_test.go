package wizard

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lockplane/storemigrate/internal/config"
)

func TestWizardModel_Update(t *testing.T) {
	tests := []struct {
		name          string
		initialState  WizardState
		msg           tea.Msg
		expectedState WizardState
		expectCmd     bool
	}{
		{
			name:          "successful file creation",
			initialState:  StateCreating,
			msg:           fileCreationResultMsg{result: &InitResult{}},
			expectedState: StateDone,
		},
		{
			name:          "failed file creation",
			initialState:  StateCreating,
			msg:           fileCreationResultMsg{err: fmt.Errorf("permission denied")},
			expectedState: StateError,
		},
		{
			name:          "ctrl+c quits",
			initialState:  StateStoreDetails,
			msg:           tea.KeyMsg{Type: tea.KeyCtrlC},
			expectedState: StateStoreDetails,
			expectCmd:     true,
		},
		{
			name:          "enter quits when done",
			initialState:  StateDone,
			msg:           tea.KeyMsg{Type: tea.KeyEnter},
			expectedState: StateDone,
			expectCmd:     true,
		},
		{
			name:          "q quits after an error",
			initialState:  StateError,
			msg:           tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")},
			expectedState: StateError,
			expectCmd:     true,
		},
		{
			name:          "enter moves to the next field",
			initialState:  StateStoreDetails,
			msg:           tea.KeyMsg{Type: tea.KeyEnter},
			expectedState: StateStoreDetails,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(t.TempDir(), false)
			m.state = tt.initialState
			newModel, cmd := m.Update(tt.msg)

			if newModel.(WizardModel).state != tt.expectedState {
				t.Errorf("expected state %v, got %v", tt.expectedState, newModel.(WizardModel).state)
			}
			if tt.expectCmd && cmd == nil {
				t.Error("expected command to be returned, got nil")
			}
		})
	}
}

func TestWizardModel_FocusNavigation(t *testing.T) {
	var m tea.Model = New(t.TempDir(), false)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.(WizardModel).focusIndex; got != fieldPath {
		t.Errorf("Expected focus on the path field, got %d", got)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.(WizardModel).focusIndex; got != fieldEngine {
		t.Errorf("Expected focus on the engine field, got %d", got)
	}

	for i := 0; i < fieldCount+2; i++ {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	}
	if got := m.(WizardModel).focusIndex; got != fieldName {
		t.Errorf("Expected focus to stop at the first field, got %d", got)
	}
}

func TestWizardModel_TypingEditsFocusedField(t *testing.T) {
	var m tea.Model = New(t.TempDir(), false)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	if got := m.(WizardModel).inputs[fieldName].Value(); got != "app2" {
		t.Errorf("Expected typed text in the name field, got %q", got)
	}
}

func TestWizardModel_SubmitCreatesFiles(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, false)
	m.inputs[fieldVersions].SetValue("V0, V1")
	m.focusIndex = fieldCatalogDir
	m.updateInputFocus()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if next.(WizardModel).state != StateCreating {
		t.Fatalf("Expected creating state, got %v", next.(WizardModel).state)
	}
	if cmd == nil {
		t.Fatal("Expected a file creation command")
	}

	done, _ := next.Update(cmd())
	wm := done.(WizardModel)
	if wm.state != StateDone {
		t.Fatalf("Expected done state, got %v (err %v)", wm.state, wm.Err())
	}
	if wm.Result() == nil || !wm.Result().ConfigCreated {
		t.Errorf("Expected config to be created, got %+v", wm.Result())
	}
	if !strings.Contains(wm.View(), "Setup complete") {
		t.Errorf("Unexpected view:\n%s", wm.View())
	}

	cfg, err := config.LoadConfigFile(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(cfg.Stores["app"].Versions, ","); got != "V0,V1" {
		t.Errorf("Expected versions V0,V1, got %s", got)
	}
}

func TestWizardModel_SubmitShowsErrors(t *testing.T) {
	m := New(t.TempDir(), false)
	m.inputs[fieldEngine].SetValue("postgres")
	m.inputs[fieldVersions].SetValue("")
	m.focusIndex = fieldCatalogDir
	m.updateInputFocus()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	wm := next.(WizardModel)
	if wm.state != StateStoreDetails {
		t.Fatalf("Expected to stay on store details, got %v", wm.state)
	}
	if cmd != nil {
		t.Error("Expected no command for invalid input")
	}
	if _, ok := wm.errors[fieldEngine]; !ok {
		t.Error("Expected an engine error")
	}
	if _, ok := wm.errors[fieldVersions]; !ok {
		t.Error("Expected a versions error")
	}
	if wm.focusIndex != fieldEngine {
		t.Errorf("Expected focus on the first invalid field, got %d", wm.focusIndex)
	}
	if !strings.Contains(wm.View(), "engine must be sqlite or bolt") {
		t.Errorf("Expected error in view:\n%s", wm.View())
	}
}

func TestWizardModel_View(t *testing.T) {
	tests := []struct {
		name     string
		state    WizardState
		err      error
		contains string
	}{
		{"details show fields", StateStoreDetails, nil, "Store name"},
		{"creating", StateCreating, nil, "Writing configuration"},
		{"error shows message", StateError, fmt.Errorf("disk full"), "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(t.TempDir(), false)
			m.state = tt.state
			m.err = tt.err
			if view := m.View(); !strings.Contains(view, tt.contains) {
				t.Errorf("expected view to contain %q, got:\n%s", tt.contains, view)
			}
		})
	}
}

func TestRenderResult(t *testing.T) {
	out := renderResult(&InitResult{
		ConfigPath:       "storemigrate.toml",
		ConfigUpdated:    true,
		CreatedDirs:      []string{"schemas/app"},
		GitignoreUpdated: true,
	})
	for _, want := range []string{"updated storemigrate.toml", "created schemas/app", ".gitignore updated"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestWizardModel_ExistingStoreIsAnError(t *testing.T) {
	dir := t.TempDir()
	if _, err := GenerateFiles(dir, appStore(), false); err != nil {
		t.Fatal(err)
	}

	m := New(dir, false)
	m.focusIndex = fieldCatalogDir
	m.updateInputFocus()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	done, _ := next.Update(cmd())
	if done.(WizardModel).state != StateError {
		t.Fatalf("Expected error state, got %v", done.(WizardModel).state)
	}
}
