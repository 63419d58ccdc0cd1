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
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nordlion/nordlion"
	"github.com/nordlion/nordlion/config"
	"github.com/nordlion/nordlion/kyc"
)

func initializeQueues(cfg *config.Configuration) map[string]int {
	return map[string]int{
		cfg.Queue.WebhookQueue: 3,
		cfg.Queue.SweepQueue:   1,
	}
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := nordlion.RedisClientOpt(conf)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(redisOption, asynq.Config{
		Concurrency: 2,
		Queues:      queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logrus.WithError(err).WithField("task", task.Type()).Error("task failed")
		}),
	}), nil
}

func initializeTaskHandlers(n *nordlionInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(n.cnf.Queue.WebhookQueue, nordlion.ProcessWebhook)
	mux.HandleFunc(n.cnf.Queue.SweepQueue, n.nordlion.ProcessExpirySweep)
}

// workerCommands defines the "workers" command: webhook delivery, on-demand
// expiry sweeps and, when kyc.persist_expiry is set, the periodic sweeper.
func workerCommands(n *nordlionInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start nordlion workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf := n.cnf
			defer func() {
				if err := n.nordlion.Close(); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			srv, err := initializeWorkerServer(conf, initializeQueues(conf))
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(n, mux)

			if conf.KYC.PersistExpiry {
				sweeper := kyc.NewSweeper(n.nordlion, time.Duration(conf.KYC.SweepIntervalSec)*time.Second)
				sweeper.Start()
				defer sweeper.Stop()
			}

			if err := srv.Start(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			<-sigs
			logrus.Info("shutting down workers")
			srv.Shutdown()
		},
	}

	return cmd
}
