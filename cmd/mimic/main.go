package main

import (
	"context"

	"github.com/spf13/cobra"

	_ "github.com/mimic-ml/mimic/internal/backend/cpu"
)

func main() {
	cobra.CheckErr(NewCLI().ExecuteContext(context.Background()))
}
