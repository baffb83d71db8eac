package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	zshBegin = "# >>> sayu shell hook >>>"
	zshEnd   = "# <<< sayu shell hook <<<"
)

// zshTemplate appends one JSON line per command to the sayu command log:
// {"ts":ms,"cmd":..,"exitCode":..,"duration":ms,"cwd":..}.
const zshTemplate = zshBegin + `
zmodload zsh/datetime
_sayu_preexec() {
  _sayu_cmd="$1"
  _sayu_start=$EPOCHREALTIME
}
_sayu_precmd() {
  local exit_code=$?
  [[ -z "$_sayu_cmd" ]] && return
  local ts duration
  printf -v ts '%.0f' $(( _sayu_start * 1000 ))
  printf -v duration '%.0f' $(( (EPOCHREALTIME - _sayu_start) * 1000 ))
  local cmd=${_sayu_cmd//\\/\\\\}
  cmd=${cmd//\"/\\\"}
  cmd=${cmd//$'\n'/\\n}
  cmd=${cmd//$'\t'/\\t}
  local dir=${PWD//\\/\\\\}
  dir=${dir//\"/\\\"}
  print -r -- "{\"ts\":$ts,\"cmd\":\"$cmd\",\"exitCode\":$exit_code,\"duration\":$duration,\"cwd\":\"$dir\"}" >> "{{LOG}}"
  unset _sayu_cmd
}
autoload -Uz add-zsh-hook
add-zsh-hook preexec _sayu_preexec
add-zsh-hook precmd _sayu_precmd
` + zshEnd + "\n"

// ZshSnippet returns the preexec/precmd block that logs to logPath.
func ZshSnippet(logPath string) string {
	return strings.ReplaceAll(zshTemplate, "{{LOG}}", logPath)
}

// InstallZsh appends the snippet to rcPath unless it is already there, and
// creates the log directory. It reports whether rcPath was changed.
func InstallZsh(rcPath, logPath string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return false, fmt.Errorf("create log dir: %w", err)
	}

	existing, err := os.ReadFile(rcPath)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("read %s: %w", rcPath, err)
	}
	if strings.Contains(string(existing), zshBegin) {
		return false, nil
	}

	f, err := os.OpenFile(rcPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", rcPath, err)
	}
	defer f.Close()

	prefix := "\n"
	if len(existing) == 0 || strings.HasSuffix(string(existing), "\n\n") {
		prefix = ""
	}
	if _, err := f.WriteString(prefix + ZshSnippet(logPath)); err != nil {
		return false, fmt.Errorf("write %s: %w", rcPath, err)
	}
	return true, nil
}
