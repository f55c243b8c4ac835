// Package uiplugin is the typed view of the UI plugin's exported C ABI.
//
// A Plugin wraps one capability.Table. Callers must hold a lease on that
// table for as long as they use the Plugin; see capability.Manager.Call.
package uiplugin

import "github.com/grovetools/uireload/pkg/capability"

// Display geometry the plugin renders at.
const (
	ScreenWidth  = 320
	ScreenHeight = 240
)

// Exported symbol names.
const (
	SymSetup                   = "lvgl_setup"
	SymUpdate                  = "lvgl_update"
	SymAdvanceTimer            = "lvgl_advance_timer"
	SymFramebuffer             = "get_lvgl_framebuffer"
	SymDisplayWidth            = "get_lvgl_display_width"
	SymDisplayHeight           = "get_lvgl_display_height"
	SymRequiredFramebufferSize = "lvgl_get_required_framebuffer_size"
	SymRegisterExternalBuffer  = "lvgl_register_external_buffer"

	SymRegisterLogCallback  = "register_ui_log_callback"
	SymRegisterTreeCallback = "register_tree_send_callback"
	SymExportTree           = "lvscope_export_tree"
	SymRegisterFlushArea    = "register_flush_area_cb"
	SymClearFlushArea       = "clear_flush_area_cb"

	SymObjAtPoint  = "lvgl_obj_at_point"
	SymLabelText   = "lvgl_label_text"
	SymObjSetShown = "lvgl_obj_set_shown"
)

// RequiredSymbols must all resolve or the artifact is rejected.
var RequiredSymbols = []string{
	SymSetup,
	SymUpdate,
	SymFramebuffer,
	SymDisplayWidth,
	SymDisplayHeight,
	SymRegisterExternalBuffer,
}

// OptionalSymbols are introspection and debugging hooks older plugin builds
// may not export.
var OptionalSymbols = []string{
	SymAdvanceTimer,
	SymRequiredFramebufferSize,
	SymRegisterLogCallback,
	SymRegisterTreeCallback,
	SymExportTree,
	SymRegisterFlushArea,
	SymClearFlushArea,
	SymObjAtPoint,
	SymLabelText,
	SymObjSetShown,
}

// Symbols returns the full symbol set for capability.NewManager.
func Symbols() []capability.Symbol {
	return append(capability.Required(RequiredSymbols...), capability.Optional(OptionalSymbols...)...)
}
