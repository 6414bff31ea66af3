//go:build !no_scripts

// Package script evaluates Lua descriptor scripts. A script declares devices
// with device{...} and builds the extend list from the ext table.
package script

import "errors"

var (
	ErrNotFound  = errors.New("script not found")
	ErrInvalidID = errors.New("invalid script id")
)

// ScriptMeta holds user-editable metadata for a script.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script is a single descriptor script stored on disk.
type Script struct {
	ID       string     `json:"id"` // filename stem (no .lua)
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"` // raw Lua source (without header)
	FilePath string     `json:"-"`
}
