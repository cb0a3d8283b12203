package bot

import "strings"

type Command struct {
	Name ActionType
	Args []string
}

// ParseCommand splits a prefixed chat message into its keyword and
// arguments. The keyword is lower-cased; arguments keep their case.
func ParseCommand(content, prefix string) (Command, bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{
		Name: ActionType(strings.ToLower(fields[0])),
		Args: fields[1:],
	}, true
}
