package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jo-hoe/content-localizer/internal/client"
)

var (
	serverURL string
	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "localizerctl",
	Short: "Client for the content localizer service",
	Long:  `localizerctl submits assets for localization and polls job status.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL)
	},
}

var (
	submitLang        string
	submitTone        string
	submitContentType string
	submitNotes       string
	submitUser        string
	submitWait        bool
)

var submitCmd = &cobra.Command{
	Use:   "submit file",
	Short: "Submit a file for localization",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		data, err := os.ReadFile(path) // #nosec G304 - user-provided input file
		if err != nil {
			log.Fatalf("read file: %v", err)
		}

		fileName := filepath.Base(path)
		fileType, contentType := classifyFile(fileName)

		req := client.SubmitRequest{
			FileName: fileName,
			FileType: fileType,
			FileSize: int64(len(data)),
			UserID:   submitUser,
			ContextData: map[string]any{
				"targetLanguage": submitLang,
				"tone":           submitTone,
				"contentType":    submitContentType,
				"specialNotes":   submitNotes,
			},
		}

		ctx := cmd.Context()
		sub, err := apiClient.Submit(ctx, req)
		if err != nil {
			log.Fatalf("submit: %v", err)
		}
		fmt.Printf("Job created: %s (%s, %s)\n", sub.JobID, fileType, humanize.IBytes(uint64(len(data))))

		if err := apiClient.UploadPayload(ctx, sub.UploadURL, data, contentType); err != nil {
			log.Fatalf("upload payload: %v", err)
		}
		if err := apiClient.TriggerProcessing(ctx, sub.JobID); err != nil {
			log.Fatalf("trigger processing: %v", err)
		}
		fmt.Println("Processing triggered")

		if submitWait {
			waitForJob(ctx, sub.JobID)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status job-id",
	Short: "Show the current status of a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		job, err := apiClient.GetJob(cmd.Context(), args[0])
		if err != nil {
			log.Fatalf("get job: %v", err)
		}
		printJob(job)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch job-id",
	Short: "Poll a job until it reaches a terminal status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		waitForJob(cmd.Context(), args[0])
	},
}

var jobsUser string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List job history for a user, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := apiClient.ListJobs(cmd.Context(), jobsUser)
		if err != nil {
			log.Fatalf("list jobs: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println("No jobs found")
			return
		}
		for _, e := range entries {
			fmt.Printf("%s  %-10s  %-5s  %s  %s\n",
				e.JobID, e.Status, e.FileType, e.CreatedAt.Format(time.RFC3339), e.FileName)
		}
	},
}

func waitForJob(ctx context.Context, jobID string) {
	job, err := apiClient.PollUntilDone(ctx, jobID, client.PollOptions{
		OnUpdate: func(j *client.Job) {
			fmt.Printf("status: %s\n", j.Status)
		},
	})
	if err != nil {
		if err == client.ErrPollTimeout {
			log.Fatalf("still processing after polling budget; check again later with: localizerctl status %s", jobID)
		}
		log.Fatalf("poll: %v", err)
	}
	printJob(job)
}

func printJob(job *client.Job) {
	fmt.Printf("Job:      %s\n", job.JobID)
	fmt.Printf("Status:   %s\n", job.Status)
	fmt.Printf("File:     %s (%s, %s)\n", job.FileName, job.FileType, humanize.IBytes(uint64(job.FileSize)))
	fmt.Printf("Created:  %s\n", job.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:  %s\n", job.UpdatedAt.Format(time.RFC3339))
	if job.ErrorMessage != "" {
		fmt.Printf("Error:    %s\n", job.ErrorMessage)
	}
	if len(job.LocalizedContent) > 0 {
		var pretty map[string]any
		if err := json.Unmarshal(job.LocalizedContent, &pretty); err == nil {
			b, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Printf("Localized content:\n%s\n", string(b))
		}
	}
	if job.LocalizedFileURL != "" {
		fmt.Printf("Download: %s\n", job.LocalizedFileURL)
	}
}

func classifyFile(fileName string) (fileType, contentType string) {
	ext := strings.ToLower(filepath.Ext(fileName))
	contentType = mime.TypeByExtension(ext)
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image", contentType
	case strings.HasPrefix(contentType, "video/"):
		return "video", contentType
	default:
		if contentType == "" {
			contentType = "text/plain"
		}
		return "text", contentType
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the localizer API")

	submitCmd.Flags().StringVar(&submitLang, "lang", "", "target language")
	submitCmd.Flags().StringVar(&submitTone, "tone", "", "desired tone")
	submitCmd.Flags().StringVar(&submitContentType, "content-type", "", "content category, e.g. social post")
	submitCmd.Flags().StringVar(&submitNotes, "notes", "", "free-text notes for the transform")
	submitCmd.Flags().StringVar(&submitUser, "user", "anonymous", "user id owning the job")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "poll until the job reaches a terminal status")
	_ = submitCmd.MarkFlagRequired("lang")

	jobsCmd.Flags().StringVar(&jobsUser, "user", "anonymous", "user id to list jobs for")

	rootCmd.AddCommand(submitCmd, statusCmd, watchCmd, jobsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
