package internal

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

const Version = "0.3.0"

// PrintUsage 向 stderr 输出 textvec 的用法与可用子命令列表。
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `textvec - Text embedding ingestion and retrieval

Version: %s

USAGE:
    textvec [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.textvec/config/textvec.yaml)

    -db <path>
        Override database path (directory, or a .db file)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    ingest
        Split, embed and store a document (or a directory of documents)

    search
        Retrieve the chunks most similar to a query

    index
        Rebuild the keyword index from the stored rows

    stats
        Show table sizes and recent ingestion runs

    mcp
        Run MCP stdio server (tools: textvec_retrieve, textvec_index, textvec_status)

EXAMPLES:
    # Ingest a document, replacing the table
    textvec ingest -input test-doc.txt -source "Immanuel Kant, Critique of Pure Reason" -comment "Taken from gutenberg"

    # Append a directory of notes with four embedding workers
    textvec ingest -input notes/ -include "**/*.md" -append -workers 4

    # Search
    textvec search "what is transcendental knowledge"

    # Show statistics
    textvec stats

For detailed help on each command, use:
    textvec <command> -help
`, Version)
}

// StringList is a flag.Value that collects multiple strings
type StringList []string

// String 返回 StringList 的逗号连接形式。
func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

// Set 将单个字符串追加到 StringList，允许多次传入同一 flag。
func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// ParseInterspersed 解析 args 中的 flag，允许 flag 出现在位置参数之后，
// 返回按原顺序排列的位置参数。"--" 之后的内容全部视为位置参数。
func ParseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if n := len(args) - len(rest); n > 0 && args[n-1] == "--" {
			return append(positional, rest...), nil
		}
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}
