package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/poiesic/avlondb"
)

const shellHelp = `Commands:
  get KEY              print the value stored under KEY
  put KEY JSON         store JSON under KEY
  update KEY JSON      replace the value under an existing KEY
  delete KEY           remove KEY
  range START END      print records with keys in [START, END]
  exists KEY           report whether KEY is present
  help                 show this text
  exit                 leave the shell
`

var completer = readline.NewPrefixCompleter(
	readline.PcItem("get"),
	readline.PcItem("put"),
	readline.PcItem("update"),
	readline.PcItem("delete"),
	readline.PcItem("range"),
	readline.PcItem("exists"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

var errQuit = errors.New("quit")

func runShell(ctx context.Context, s *avlondb.Store, w io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "avlondb> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".avlondb_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(w, "avlondb shell on %s (%s). Type help for commands.\n", s.Path(), s.Engine())
	for {
		line, readErr := rl.Readline()
		if errors.Is(readErr, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return readErr
		}

		err := execLine(ctx, s, w, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
	}
}

// execLine runs one shell command. JSON arguments take the rest of the line
// and may contain spaces.
func execLine(ctx context.Context, s *avlondb.Store, w io.Writer, line string) error {
	verb, rest := nextField(line)
	switch strings.ToLower(verb) {
	case "":
		return nil
	case "help", ".help":
		_, err := io.WriteString(w, shellHelp)
		return err
	case "exit", "quit", ".exit":
		return errQuit
	case "get":
		key, err := oneArg(verb, rest)
		if err != nil {
			return err
		}
		return get(ctx, s, w, key)
	case "put", "update":
		key, value := nextField(rest)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			return fmt.Errorf("usage: %s KEY JSON", verb)
		}
		if strings.EqualFold(verb, "put") {
			return put(ctx, s, key, value)
		}
		return update(ctx, s, key, value)
	case "delete":
		key, err := oneArg(verb, rest)
		if err != nil {
			return err
		}
		return s.Remove(ctx, key)
	case "exists":
		key, err := oneArg(verb, rest)
		if err != nil {
			return err
		}
		ok, err := s.Exists(ctx, key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, ok)
		return err
	case "range":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return errors.New("usage: range START END")
		}
		return listRange(ctx, s, w, fields[0], fields[1])
	default:
		return fmt.Errorf("unknown command %q (type help for commands)", verb)
	}
}

func nextField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func oneArg(verb, rest string) (string, error) {
	fields := strings.Fields(rest)
	if len(fields) != 1 {
		return "", fmt.Errorf("usage: %s KEY", verb)
	}
	return fields[0], nil
}
