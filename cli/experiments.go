package cli

import (
	"encoding/json"
	"strconv"

	"github.com/absmach/siteguard/pkg/sdk"
	"github.com/spf13/cobra"
)

const roundFlag = "round"

var (
	DefTLSVerification        = false
	DefCoordinatorURL         = "http://localhost:7070"
	defOffset          uint64 = 0
	defLimit           uint64 = 10

	threshold    uint64
	epochs       int
	learningRate float64
	round        uint64
	useCBOR      bool
	offset       uint64
	limit        uint64
)

var (
	ssdk  sdk.SDK
	token string
)

func SetSDK(s sdk.SDK) {
	ssdk = s
}

// SetToken sets the bearer token that identifies this site to the coordinator.
func SetToken(t string) {
	token = t
}

func roundArg(cmd *cobra.Command) *uint64 {
	if !cmd.Flags().Changed(roundFlag) {
		return nil
	}
	r := round

	return &r
}

func NewExperimentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiments [create|view|list|join|participant|participants|start|train|upload|contributions|aggregate|model|predict]",
		Short: "Experiments manager",
		Long:  `Create, run and query federated learning experiments.`,
	}

	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create experiment",
		Long: `Create experiment. A name is generated when none is given.

Examples:
  siteguard-cli experiments create tower-crane --threshold 2`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			exp := sdk.Experiment{ParticipantThreshold: threshold}
			if len(args) == 1 {
				exp.Name = args[0]
			}
			e, err := ssdk.CreateExperiment(exp)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, e)
		},
	}
	createCmd.Flags().Uint64VarP(&threshold, "threshold", "t", 0, "Participant threshold")

	viewCmd := &cobra.Command{
		Use:   "view <id>",
		Short: "View experiment",
		Long:  `View experiment.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			e, err := ssdk.GetExperiment(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, e)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		Long:  `List experiments.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := ssdk.ListExperiments(offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}
	pageFlags(listCmd)

	joinCmd := &cobra.Command{
		Use:   "join <id>",
		Short: "Join experiment",
		Long:  `Join experiment as the site identified by the configured token.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := ssdk.JoinExperiment(args[0], token)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	participantCmd := &cobra.Command{
		Use:   "participant <id>",
		Short: "View own participant record",
		Long:  `View the participant record of the configured site.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			p, err := ssdk.GetParticipant(args[0], token)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	participantsCmd := &cobra.Command{
		Use:   "participants <id>",
		Short: "List participants",
		Long:  `List participants of an experiment.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := ssdk.ListParticipants(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	startCmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start experiment",
		Long:  `Start experiment and provision local models.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			res, err := ssdk.StartExperiment(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}

	trainCmd := &cobra.Command{
		Use:   "train <id> <participant_id> <project_id>",
		Short: "Train and submit",
		Long: `Train the latest global model on a project dataset and submit the result.

Examples:
  siteguard-cli experiments train <id> <participant_id> tower-block-7 --epochs 50 --lr 0.05`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			res, err := ssdk.Train(args[0], sdk.TrainRequest{
				ParticipantID: args[1],
				ProjectID:     args[2],
				Epochs:        epochs,
				LearningRate:  learningRate,
			})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}
	trainCmd.Flags().IntVarP(&epochs, "epochs", "e", 10, "Training epochs")
	trainCmd.Flags().Float64VarP(&learningRate, "lr", "r", 0.01, "Learning rate")

	uploadCmd := &cobra.Command{
		Use:   "upload <id> <weights_json> <dataset_size>",
		Short: "Upload contribution",
		Long: `Upload locally trained weights.

Examples:
  siteguard-cli experiments upload <id> '{"w":[1.0]}' 10
  siteguard-cli experiments upload <id> '[0.5, 1.5]' 4 --cbor`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			var weights any
			if err := json.Unmarshal([]byte(args[1]), &weights); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			size, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			upload := ssdk.UploadContribution
			if useCBOR {
				upload = ssdk.UploadContributionCBOR
			}
			c, err := upload(args[0], token, weights, size)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, c)
		},
	}
	uploadCmd.Flags().BoolVar(&useCBOR, "cbor", false, "Encode the upload as CBOR")

	contributionsCmd := &cobra.Command{
		Use:   "contributions <id>",
		Short: "List contributions",
		Long:  `List contributions, optionally of a single round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := ssdk.ListContributions(args[0], roundArg(cmd), offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}
	pageFlags(contributionsCmd)
	contributionsCmd.Flags().Uint64Var(&round, roundFlag, 0, "Round")

	aggregateCmd := &cobra.Command{
		Use:   "aggregate <id>",
		Short: "Aggregate current round",
		Long:  `Aggregate the contributions of the current round into the next global model.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			res, err := ssdk.Aggregate(args[0], roundArg(cmd))
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}
	aggregateCmd.Flags().Uint64Var(&round, roundFlag, 0, "Expected current round")

	modelCmd := &cobra.Command{
		Use:   "model <id>",
		Short: "View global model",
		Long:  `View the latest global model, or the one of a given round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			gm, err := ssdk.GetGlobalModel(args[0], roundArg(cmd))
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, gm)
		},
	}
	modelCmd.Flags().Uint64Var(&round, roundFlag, 0, "Round")

	predictCmd := &cobra.Command{
		Use:   "predict <id> <inputs_json>",
		Short: "Predict",
		Long: `Score input rows with the latest global model.

Examples:
  siteguard-cli experiments predict <id> '[[0.2, 0.4, 0.6, 0.8, 0.1, 0.3]]'`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			var inputs [][]float64
			if err := json.Unmarshal([]byte(args[1]), &inputs); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			p, err := ssdk.Predict(args[0], inputs)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}

	cmd.AddCommand(
		createCmd,
		viewCmd,
		listCmd,
		joinCmd,
		participantCmd,
		participantsCmd,
		startCmd,
		trainCmd,
		uploadCmd,
		contributionsCmd,
		aggregateCmd,
		modelCmd,
		predictCmd,
	)

	return cmd
}

func pageFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64VarP(&offset, "offset", "o", defOffset, "Offset")
	cmd.Flags().Uint64VarP(&limit, "limit", "l", defLimit, "Limit")
}
