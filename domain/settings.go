package domain

// Theme is the persisted color-scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ValidTheme reports whether t is a storable preference.
func ValidTheme(t Theme) bool {
	return t == ThemeLight || t == ThemeDark
}
