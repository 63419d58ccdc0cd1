/*
Copyright 2024 NordLion Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nordlion/nordlion"
	"github.com/nordlion/nordlion/config"
	"github.com/nordlion/nordlion/database"
	"github.com/nordlion/nordlion/internal/notification"
)

// NordLion represents the CLI application, encapsulating the root Cobra command.
type NordLion struct {
	cmd *cobra.Command
}

// nordlionInstance holds the service and its configuration for the running command.
type nordlionInstance struct {
	nordlion *nordlion.NordLion
	cnf      *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service before any command runs.
func preRun(app *nordlionInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		// migrations and config printing must work before the schema exists
		if parent := cmd.Parent(); cmd.Name() == "config" || (parent != nil && parent.Name() == "migrate") {
			return nil
		}

		n, err := setupNordLion(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.nordlion = n
		return nil
	}
}

func setupNordLion(cfg *config.Configuration) (*nordlion.NordLion, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	n, err := nordlion.NewNordLion(db)
	if err != nil {
		return nil, fmt.Errorf("error creating nordlion: %v", err)
	}
	return n, nil
}

// NewCLI creates the root command and its subcommands.
func NewCLI() *NordLion {
	var configFile string
	n := &nordlionInstance{}

	var rootCmd = &cobra.Command{
		Use:   "nordlion",
		Short: "NordLion KYC service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./nordlion.json", "Configuration file for the NordLion KYC service")
	rootCmd.PersistentPreRunE = preRun(n, &configFile)

	rootCmd.AddCommand(serverCommands(n))
	rootCmd.AddCommand(workerCommands(n))
	rootCmd.AddCommand(migrateCommands(n))
	rootCmd.AddCommand(configCommands())

	return &NordLion{cmd: rootCmd}
}

func (w NordLion) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
