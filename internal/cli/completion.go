package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Command describes one financectl subcommand for completion scripts.
type Command struct {
	Name  string
	Flags []string
}

const bashTemplate = `#!/bin/bash
# Bash completion for %[1]s

_%[2]s_completion() {
    local cur prev
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[1]}"

    if [ "${COMP_CWORD}" -eq 1 ]; then
        COMPREPLY=( $(compgen -W "%[3]s" -- ${cur}) )
        return 0
    fi

    case "${prev}" in
%[4]s    esac
}

complete -F _%[2]s_completion %[1]s
`

const zshTemplate = `#compdef %[1]s

_%[2]s() {
    local -a commands
    commands=(%[3]s)

    if (( CURRENT == 2 )); then
        _describe 'command' commands
        return
    fi

    case "${words[2]}" in
%[4]s    esac
}

_%[2]s "$@"
`

// GenerateCompletion writes the completion script for shell to w.
func GenerateCompletion(w io.Writer, shell, program string, commands []Command) error {
	cmds := make([]Command, len(commands))
	copy(cmds, commands)
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	fn := strings.ReplaceAll(program, "-", "_")

	var cases strings.Builder
	switch shell {
	case "bash":
		for _, c := range cmds {
			if len(c.Flags) == 0 {
				continue
			}
			fmt.Fprintf(&cases, "        %s)\n            COMPREPLY=( $(compgen -W \"%s\" -- ${cur}) )\n            ;;\n",
				c.Name, strings.Join(c.Flags, " "))
		}
		_, err := fmt.Fprintf(w, bashTemplate, program, fn, strings.Join(names, " "), cases.String())
		return err
	case "zsh":
		for _, c := range cmds {
			if len(c.Flags) == 0 {
				continue
			}
			fmt.Fprintf(&cases, "        %s)\n            _values 'flag' %s\n            ;;\n", c.Name, strings.Join(c.Flags, " "))
		}
		_, err := fmt.Fprintf(w, zshTemplate, program, fn, strings.Join(names, " "), cases.String())
		return err
	default:
		return fmt.Errorf("unsupported shell: %s (supported: bash, zsh)", shell)
	}
}
