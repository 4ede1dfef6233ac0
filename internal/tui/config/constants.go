package config

import "time"

// Layout constants
const (
	// Each pane takes half of the terminal width
	PaneWidthRatio = 0.5

	// Table dimensions
	MinColumnNameWidth         = 16
	DefaultColumnSizeWidth     = 10
	DefaultColumnModifiedWidth = 16
	DefaultTableHeight         = 20

	// Rows reserved for header, status line and help
	ChromeHeight = 6

	// Dialog dimensions
	DialogDefaultWidth = 50
	DialogLargeWidth   = 70
	SelectorWidth      = 64
)

// StatusMessageTTL is how long non-error status messages stay visible
const StatusMessageTTL = 4 * time.Second
