package withdraw

import (
	"github.com/spf13/cobra"
	"github/chapool/go-withdrawer/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("withdraw",
		newRun(),
		newEnqueue(),
		newList(),
	)
}
