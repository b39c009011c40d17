package sheet

import (
	"strings"
	"unicode"

	"github.com/christopherklint97/worktracker/internal/model"
)

// maxSheetName is the longest sheet name Excel accepts.
const maxSheetName = 31

// SheetName derives the owner's sheet name from their display name, keeping
// only letters, digits, spaces, '_' and '-'. Owners whose name filters to
// nothing get user_<id>. Owners with the same last name share a sheet;
// their rows are told apart by the owner column.
func SheetName(owner model.User) string {
	var b strings.Builder
	n := 0
	for _, r := range owner.DisplayName() {
		if n == maxSheetName {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
			n++
		}
	}

	name := strings.TrimSpace(b.String())
	if name == "" || strings.EqualFold(name, infoSheet) {
		return owner.Fallback()
	}
	return name
}
