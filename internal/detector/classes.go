package detector

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/ayusman/roomcount/internal/occupancy"
)

//go:embed coco.names
var cocoNames string

// cocoClasses lists the 80 COCO class names in model output order.
var cocoClasses = parseNames(cocoNames)

func parseNames(s string) []string {
	var names []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names
}

// label maps a class index to the label the counting filter sees. The
// configured person class always maps to occupancy.PersonLabel.
func label(classID, personClassID int) string {
	if classID == personClassID {
		return occupancy.PersonLabel
	}
	if classID >= 0 && classID < len(cocoClasses) {
		name := cocoClasses[classID]
		if name == occupancy.PersonLabel {
			return "class_" + strconv.Itoa(classID)
		}
		return name
	}
	return "class_" + strconv.Itoa(classID)
}
