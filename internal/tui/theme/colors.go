package theme

// Terminal-compatible color constants using ANSI standard colors
const (
	ColorWhite        = "#FFFFFF" // primary text
	ColorBrightBlack  = "#808080" // secondary text
	ColorBrightBlue   = "#5C7CFA" // focused pane accent
	ColorBrightCyan   = "#66D9E8" // info
	ColorBrightGreen  = "#51CF66" // success
	ColorBrightYellow = "#FFD43B" // warning
	ColorBrightRed    = "#FF6B6B" // error
	ColorDimBorder    = "#495057" // unfocused pane border

	ColorDirectory        = "#74C0FC"
	ColorFileImage        = "#74C0FC"
	ColorFileDocument     = "#51CF66"
	ColorFileSpreadsheet  = "#69DB7C"
	ColorFilePresentation = "#FFD43B"
	ColorFileArchive      = "#FCC419"
	ColorFileVideo        = "#FF8787"
	ColorFileAudio        = "#DA77F2"
	ColorFileText         = "#E9ECEF"
	ColorFileCode         = "#B197FC"
	ColorFileData         = "#99E9F2"
	ColorFileFont         = "#FFB3BA"
)

// Message kinds, in the same order as messaging.MessageType.
const (
	MessageInfo = iota
	MessageSuccess
	MessageWarning
	MessageError
)

// GetFileColor returns the color for a given file category
func GetFileColor(category string) string {
	switch category {
	case "directory":
		return ColorDirectory
	case "image":
		return ColorFileImage
	case "document":
		return ColorFileDocument
	case "spreadsheet":
		return ColorFileSpreadsheet
	case "presentation":
		return ColorFilePresentation
	case "archive":
		return ColorFileArchive
	case "video":
		return ColorFileVideo
	case "audio":
		return ColorFileAudio
	case "text":
		return ColorFileText
	case "code":
		return ColorFileCode
	case "data":
		return ColorFileData
	case "font":
		return ColorFileFont
	default:
		return ColorWhite
	}
}

// GetMessageColor returns the color for a given message type
func GetMessageColor(messageType int) string {
	switch messageType {
	case MessageError:
		return ColorBrightRed
	case MessageSuccess:
		return ColorBrightGreen
	case MessageWarning:
		return ColorBrightYellow
	default:
		return ColorBrightCyan
	}
}

// GetMessageIcon returns the icon for a given message type
func GetMessageIcon(messageType int) string {
	switch messageType {
	case MessageError:
		return "❌"
	case MessageSuccess:
		return "✅"
	case MessageWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// GetCategoryEmoji returns the list icon for a file category
func GetCategoryEmoji(category string) string {
	switch category {
	case "directory":
		return "📁"
	case "image":
		return "🖼️"
	case "document":
		return "📄"
	case "spreadsheet":
		return "📊"
	case "presentation":
		return "📽️"
	case "archive":
		return "📦"
	case "video":
		return "🎬"
	case "audio":
		return "🎵"
	case "code":
		return "💻"
	case "data":
		return "🗃️"
	case "font":
		return "🔤"
	default:
		return "📄"
	}
}
