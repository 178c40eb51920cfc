package wizard

import (
	"github.com/charmbracelet/bubbles/textinput"
)

// WizardState represents the current step in the wizard flow
type WizardState int

const (
	StateStoreDetails WizardState = iota
	StateCreating
	StateDone
	StateError
)

// Input field order in StateStoreDetails
const (
	fieldName = iota
	fieldEngine
	fieldPath
	fieldFamily
	fieldVersions
	fieldCatalogDir
	fieldCount
)

// WizardModel holds the state for the Bubble Tea wizard
type WizardModel struct {
	state WizardState
	dir   string
	force bool

	// Input fields (using bubbletea textinput)
	inputs     []textinput.Model
	focusIndex int

	// Validation errors keyed by field index
	errors map[int]string

	// Final output
	result *InitResult
	err    error

	// Terminal dimensions
	width  int
	height int
}

// StoreInput holds user input for the store being configured
type StoreInput struct {
	Name       string
	Engine     string // "sqlite" or "bolt"
	Path       string
	Family     string
	Versions   []string
	CatalogDir string
}

// InitResult contains the outcome of running the wizard
type InitResult struct {
	ConfigPath       string
	ConfigCreated    bool
	ConfigUpdated    bool
	CreatedDirs      []string
	GitignoreUpdated bool
}
