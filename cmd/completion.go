package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts.
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_kpvault() {
    local cur prev words cword
    _init_completion || return

    local commands="create edit set show rm ls status diff import compact keyring completion help"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        edit)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--set-password --unset-password --set-key-file --unset-key-file --key-file --token --no-keyring" -- "$cur"))
            else
                _filedir
            fi
            ;;
        create)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--no-password --key-file --token" -- "$cur"))
            else
                _filedir
            fi
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
        *)
            _filedir
            ;;
    esac
}
complete -F _kpvault kpvault
`

const zshCompletion = `#compdef kpvault

_kpvault() {
    local -a commands
    commands=(
        'create:Create a new vault'
        'edit:Change the unlock credential of a vault'
        'set:Store a secret entry'
        'show:Print a secret entry'
        'rm:Remove entries'
        'ls:List entries'
        'status:Show vault status'
        'diff:Compare an entry with a local file'
        'import:Import entries from a dotenv file'
        'compact:Compact the vault file'
        'keyring:Manage the OS keyring entry'
        'completion:Generate shell completions'
        'help:Show help for a command'
    )

    if (( CURRENT == 2 )); then
        _describe 'command' commands
        return
    fi

    case "$words[2]" in
        keyring)
            _values 'action' save delete status
            ;;
        completion)
            _values 'shell' bash zsh fish
            ;;
        *)
            _files
            ;;
    esac
}

_kpvault "$@"
`

const fishCompletion = `complete -c kpvault -f
complete -c kpvault -n "__fish_use_subcommand" -a create -d "Create a new vault"
complete -c kpvault -n "__fish_use_subcommand" -a edit -d "Change the unlock credential"
complete -c kpvault -n "__fish_use_subcommand" -a set -d "Store a secret entry"
complete -c kpvault -n "__fish_use_subcommand" -a show -d "Print a secret entry"
complete -c kpvault -n "__fish_use_subcommand" -a rm -d "Remove entries"
complete -c kpvault -n "__fish_use_subcommand" -a ls -d "List entries"
complete -c kpvault -n "__fish_use_subcommand" -a status -d "Show vault status"
complete -c kpvault -n "__fish_use_subcommand" -a diff -d "Compare an entry with a local file"
complete -c kpvault -n "__fish_use_subcommand" -a import -d "Import entries from a dotenv file"
complete -c kpvault -n "__fish_use_subcommand" -a compact -d "Compact the vault file"
complete -c kpvault -n "__fish_use_subcommand" -a keyring -d "Manage the OS keyring entry"
complete -c kpvault -n "__fish_use_subcommand" -a completion -d "Generate shell completions"
complete -c kpvault -n "__fish_seen_subcommand_from keyring" -a "save delete status"
complete -c kpvault -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
complete -c kpvault -n "__fish_seen_subcommand_from edit" -l set-password -d "Prompt for a new password"
complete -c kpvault -n "__fish_seen_subcommand_from edit" -l unset-password -d "Remove the password factor"
complete -c kpvault -n "__fish_seen_subcommand_from edit" -l set-key-file -r -d "Set a new key file"
complete -c kpvault -n "__fish_seen_subcommand_from edit" -l unset-key-file -d "Remove the key file factor"
`
