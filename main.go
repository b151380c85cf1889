package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/crazycat36/keepassxc/cmd"
	"github.com/crazycat36/keepassxc/internal/keys"
)

// stringList collects repeatable flag values.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		runCreate(os.Args[2:])
	case "edit":
		runEdit(os.Args[2:])
	case "set":
		runSet(os.Args[2:])
	case "show":
		runShow(os.Args[2:])
	case "rm":
		runRm(os.Args[2:])
	case "ls":
		runLs(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "diff":
		runDiff(os.Args[2:])
	case "import":
		runImport(os.Args[2:])
	case "compact":
		runCompact(os.Args[2:])
	case "keyring":
		runKeyring(os.Args[2:])
	case "completion":
		runCompletion(os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// unlockFlags registers the factor-source flags shared by every
// command that unlocks a vault.
func unlockFlags(fs *flag.FlagSet) (keyFile *string, tokens *stringList, noKeyring *bool) {
	keyFile = fs.String("key-file", "", "Key file that unlocks the vault")
	tokens = &stringList{}
	fs.Var(tokens, "token", "Token secret file (repeatable)")
	noKeyring = fs.Bool("no-keyring", false, "Skip the OS keyring password lookup")
	return
}

func requireArgs(fs *flag.FlagSet, n int, usage string) []string {
	args := fs.Args()
	if misplaced := flagLike(args); misplaced != "" {
		fmt.Fprintf(os.Stderr, "Error: flag %s must come before the vault path\n", misplaced)
		fmt.Fprintf(os.Stderr, "Usage: kpvault %s\n", usage)
		os.Exit(1)
	}
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "Usage: kpvault %s\n", usage)
		os.Exit(1)
	}
	return args
}

// flagLike returns the first leftover argument that looks like a flag.
// Flag parsing stops at the first positional, so a flag given after
// the vault path would otherwise be treated as a plain argument and
// ignored without any indication.
func flagLike(args []string) string {
	for _, a := range args {
		if strings.HasPrefix(a, "-") && a != "-" {
			return a
		}
	}
	return ""
}

func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	noPassword := fs.Bool("no-password", false, "Do not protect the vault with a password")
	keyFile := fs.String("key-file", "", "Key file to enroll (generated if missing)")
	tokens := &stringList{}
	fs.Var(tokens, "token", "Token secret file to enroll (generated if missing, repeatable)")
	parse(fs, args)

	positional := requireArgs(fs, 1, "create [flags] <vault>")
	cmd.Create(positional[0], cmd.CreateOptions{
		NoPassword:  *noPassword,
		KeyFilePath: *keyFile,
		TokenPaths:  *tokens,
	})
}

func runEdit(args []string) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	setPassword := fs.Bool("set-password", false, "Prompt for a new password")
	unsetPassword := fs.Bool("unset-password", false, "Remove the password factor")
	setKeyFile := fs.String("set-key-file", "", "Replace the key file factor with this file")
	unsetKeyFile := fs.Bool("unset-key-file", false, "Remove the key file factor")
	keyFile, tokens, noKeyring := unlockFlags(fs)
	parse(fs, args)

	positional := requireArgs(fs, 1, "edit [flags] <vault>")
	cmd.Edit(positional[0],
		keys.ChangeRequest{
			SetPassword:    *setPassword,
			UnsetPassword:  *unsetPassword,
			NewKeyFilePath: *setKeyFile,
			UnsetKeyFile:   *unsetKeyFile,
		},
		cmd.UnlockOptions{KeyFilePath: *keyFile, TokenPaths: *tokens, NoKeyring: *noKeyring})
}

func runSet(args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	keyFile, tokens, noKeyring := unlockFlags(fs)
	parse(fs, args)

	positional := requireArgs(fs, 2, "set [flags] <vault> <name>")
	cmd.Set(positional[0], positional[1],
		cmd.UnlockOptions{KeyFilePath: *keyFile, TokenPaths: *tokens, NoKeyring: *noKeyring})
}

func runShow(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	keyFile, tokens, noKeyring := unlockFlags(fs)
	parse(fs, args)

	positional := requireArgs(fs, 2, "show [flags] <vault> <name>")
	cmd.Show(positional[0], positional[1],
		cmd.UnlockOptions{KeyFilePath: *keyFile, TokenPaths: *tokens, NoKeyring: *noKeyring})
}

func runRm(args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	keyFile, tokens, noKeyring := unlockFlags(fs)
	parse(fs, args)

	positional := requireArgs(fs, 2, "rm [flags] <vault> <name> [name...]")
	cmd.Remove(positional[0], positional[1:],
		cmd.UnlockOptions{KeyFilePath: *keyFile, TokenPaths: *tokens, NoKeyring: *noKeyring})
}

func runLs(args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	keyFile, tokens, noKeyring := unlockFlags(fs)
	parse(fs, args)

	positional := requireArgs(fs, 1, "ls [flags] <vault>")
	cmd.List(positional[0],
		cmd.UnlockOptions{KeyFilePath: *keyFile, TokenPaths: *tokens, NoKeyring: *noKeyring})
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	parse(fs, args)

	positional := requireArgs(fs, 1, "status <vault>")
	cmd.Status(positional[0])
}

func runDiff(args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	keyFile, tokens, noKeyring := unlockFlags(fs)
	parse(fs, args)

	positional := requireArgs(fs, 3, "diff [flags] <vault> <entry> <file>")
	cmd.Diff(positional[0], positional[1], positional[2],
		cmd.UnlockOptions{KeyFilePath: *keyFile, TokenPaths: *tokens, NoKeyring: *noKeyring})
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	keyFile, tokens, noKeyring := unlockFlags(fs)
	parse(fs, args)

	positional := requireArgs(fs, 2, "import [flags] <vault> <env-file>")
	cmd.Import(positional[0], positional[1],
		cmd.UnlockOptions{KeyFilePath: *keyFile, TokenPaths: *tokens, NoKeyring: *noKeyring})
}

func runCompact(args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	parse(fs, args)

	positional := requireArgs(fs, 1, "compact <vault>")
	cmd.Compact(positional[0])
}

func runKeyring(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kpvault keyring <save|delete|status> [flags] <vault>")
		os.Exit(1)
	}
	action := args[0]

	fs := flag.NewFlagSet("keyring", flag.ExitOnError)
	keyFile, tokens, noKeyring := unlockFlags(fs)
	parse(fs, args[1:])

	positional := requireArgs(fs, 1, "keyring <save|delete|status> [flags] <vault>")
	vaultPath := positional[0]

	switch action {
	case "save":
		cmd.KeyringSave(vaultPath,
			cmd.UnlockOptions{KeyFilePath: *keyFile, TokenPaths: *tokens, NoKeyring: *noKeyring})
	case "delete":
		cmd.KeyringDelete(vaultPath)
	case "status":
		cmd.KeyringStatus(vaultPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring action: %s\n", action)
		os.Exit(1)
	}
}

func runCompletion(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kpvault completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("kpvault - Password vault with composite unlock credentials")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  kpvault <command> [flags] [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create      Create a new vault (guided)")
	fmt.Println("  edit        Change a vault's unlock credential")
	fmt.Println("  set         Store a secret entry")
	fmt.Println("  show        Print a secret entry")
	fmt.Println("  rm          Remove entries from the vault")
	fmt.Println("  ls          List entries")
	fmt.Println("  status      Show vault status")
	fmt.Println("  diff        Compare an entry with a local file")
	fmt.Println("  import      Import entries from a dotenv file")
	fmt.Println("  compact     Compact the vault file to reclaim disk space")
	fmt.Println("  keyring     Manage the OS keyring entry for the vault")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  kpvault create secrets.kpv                   # Guided vault creation")
	fmt.Println("  kpvault edit --set-password secrets.kpv      # Change the master password")
	fmt.Println("  kpvault edit --unset-key-file secrets.kpv    # Drop the key file factor")
	fmt.Println("  kpvault set secrets.kpv db/prod              # Store an entry")
	fmt.Println()
	fmt.Println("Use 'kpvault help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "create":
		fmt.Println("kpvault create [--no-password] [--key-file <path>] [--token <path>]... <vault>")
		fmt.Println()
		fmt.Println("Creates a new vault through a guided sequence: vault name and")
		fmt.Println("description, encryption settings, then the unlock credential.")
		fmt.Println("At least one unlock factor is required; by default a password is")
		fmt.Println("prompted for with confirmation.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --no-password     Skip the password factor")
		fmt.Println("  --key-file path   Enroll a key file (generated if missing)")
		fmt.Println("  --token path      Enroll a token secret file (generated if missing)")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  kpvault create secrets.kpv")
		fmt.Println("  kpvault create --key-file vault.key secrets.kpv")
		fmt.Println("  kpvault create --no-password --token yk.secret secrets.kpv")
	case "edit":
		fmt.Println("kpvault edit [flags] <vault>")
		fmt.Println()
		fmt.Println("Changes the vault's unlock credential. Hardware-token factors are")
		fmt.Println("never touched by password or key file changes. The vault is")
		fmt.Println("rewritten atomically: a failed edit leaves the file as it was.")
		fmt.Println("Removing the last remaining factor is refused.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --set-password        Prompt for a new password (with confirmation)")
		fmt.Println("  --unset-password      Remove the password factor")
		fmt.Println("  --set-key-file path   Replace the key file factor with this file")
		fmt.Println("  --unset-key-file      Remove the key file factor")
		fmt.Println("  --key-file path       Key file that currently unlocks the vault")
		fmt.Println("  --token path          Token secret file that currently unlocks the vault")
		fmt.Println()
		fmt.Println("--set-password and --unset-password are mutually exclusive, as are")
		fmt.Println("--set-key-file and --unset-key-file. Without any of the four the")
		fmt.Println("vault is not modified.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  kpvault edit --set-password secrets.kpv")
		fmt.Println("  kpvault edit --set-key-file new.key secrets.kpv")
		fmt.Println("  kpvault edit --unset-password --key-file vault.key secrets.kpv")
	case "set":
		fmt.Println("kpvault set [flags] <vault> <name>")
		fmt.Println()
		fmt.Println("Stores a secret entry. The value is prompted for without echo.")
	case "show":
		fmt.Println("kpvault show [flags] <vault> <name>")
		fmt.Println()
		fmt.Println("Prints a secret entry's value to stdout.")
	case "rm":
		fmt.Println("kpvault rm [flags] <vault> <name> [name...]")
		fmt.Println()
		fmt.Println("Removes entries from the vault.")
	case "ls":
		fmt.Println("kpvault ls [flags] <vault>")
		fmt.Println()
		fmt.Println("Lists entries with sizes and modification times.")
	case "status":
		fmt.Println("kpvault status <vault>")
		fmt.Println()
		fmt.Println("Shows vault information: name, encryption settings, unlock factor")
		fmt.Println("kinds and entry names. Does not require credentials.")
	case "diff":
		fmt.Println("kpvault diff [flags] <vault> <entry> <file>")
		fmt.Println()
		fmt.Println("Prints a unified diff between a stored entry and a local file.")
	case "import":
		fmt.Println("kpvault import [flags] <vault> <env-file>")
		fmt.Println()
		fmt.Println("Imports KEY=VALUE pairs from a dotenv file as entries.")
	case "compact":
		fmt.Println("kpvault compact <vault>")
		fmt.Println()
		fmt.Println("Compacts the vault file to reclaim unused disk space.")
		fmt.Println("Does not require credentials.")
	case "keyring":
		fmt.Println("kpvault keyring <save|delete|status> [flags] <vault>")
		fmt.Println()
		fmt.Println("Manages the OS keyring entry holding the vault's master password.")
		fmt.Println("'save' verifies the password before storing it.")
	case "completion":
		fmt.Println("kpvault completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs a shell completion script for the specified shell.")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
