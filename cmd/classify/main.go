package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"photo_classifier/internal/app/config"
	"photo_classifier/internal/app/di"
	"photo_classifier/internal/feature/classification/adapters/onnx"
	"photo_classifier/internal/feature/classification/usecase"
	jwtmw "photo_classifier/internal/platform/jwt"
)

var (
	modelDirFlag = cli.StringFlag{
		Name:   "model-dir",
		Usage:  "directory holding tensor_model.onnx",
		Value:  "model",
		EnvVar: "MODEL_DIR",
	}
	ortLibFlag = cli.StringFlag{
		Name:   "ort-lib",
		Usage:  "path to the ONNX Runtime shared library",
		EnvVar: "ONNXRUNTIME_LIB",
	}
	timeoutFlag = cli.DurationFlag{
		Name:   "timeout",
		Usage:  "per image inference timeout",
		Value:  usecase.DefaultInferenceTimeout,
		EnvVar: "INFERENCE_TIMEOUT",
	}
	logLevelFlag = cli.StringFlag{
		Name:   "log-level",
		Usage:  "debug, info, warn or error",
		Value:  "warn",
		EnvVar: "LOG_LEVEL",
	}
	secretFlag = cli.StringFlag{
		Name:   "secret",
		Usage:  "HS256 signing secret",
		EnvVar: "JWT_SECRET",
	}
	ttlFlag = cli.DurationFlag{
		Name:  "ttl",
		Usage: "token lifetime",
		Value: 24 * time.Hour,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "classify"
	app.Usage = "classify photos with the bundled ONNX model"
	app.Flags = []cli.Flag{logLevelFlag}
	app.Before = func(c *cli.Context) error {
		level, err := config.ParseLevel(c.GlobalString(logLevelFlag.Name))
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "classify one or more image files and print JSON lines",
			ArgsUsage: "<image> [image...]",
			Flags:     []cli.Flag{modelDirFlag, ortLibFlag, timeoutFlag},
			Action:    classifyCommand,
		},
		{
			Name:   "token",
			Usage:  "issue a bearer token for the HTTP API",
			Flags:  []cli.Flag{secretFlag, ttlFlag, cli.StringFlag{Name: "subject", Value: "cli"}},
			Action: tokenCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// line は1画像分の出力です。
type line struct {
	File   string   `json:"file"`
	Result []string `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func classifyCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one image path is required")
	}

	model, err := di.LoadModel(c.String(modelDirFlag.Name))
	if err != nil {
		return err
	}
	rt, err := onnx.NewRuntime(onnx.Config{SharedLibraryPath: c.String(ortLibFlag.Name)})
	if err != nil {
		return err
	}

	timeout := c.Duration(timeoutFlag.Name)
	pipeline, err := di.NewPipeline(model, rt, timeout, 1)
	if err != nil {
		_ = rt.Close()
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := di.CloseInference(ctx, pipeline, rt); err != nil {
			slog.Error("failed to close ONNX runtime", "error", err)
		}
	}()

	failed := classifyAll(context.Background(), pipeline, c.Args(), os.Stdout)
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, c.NArg())
	}
	return nil
}

// classifyAll は各画像を順に分類してJSON Linesで出力し、失敗数を返します。
func classifyAll(ctx context.Context, clf di.Pipeline, paths []string, w io.Writer) int {
	enc := json.NewEncoder(w)
	failed := 0
	for _, p := range paths {
		out := line{File: p}
		result, err := clf.Classify(ctx, p)
		if err != nil {
			out.Error = err.Error()
			failed++
		} else {
			out.Result = result
		}
		if err := enc.Encode(out); err != nil {
			slog.Error("failed to write result", "file", p, "error", err)
		}
	}
	return failed
}

func tokenCommand(c *cli.Context) error {
	secret := c.String(secretFlag.Name)
	if secret == "" {
		return errors.New("--secret or JWT_SECRET is required")
	}
	token, err := jwtmw.NewGenerator(secret, c.Duration(ttlFlag.Name)).GenerateToken(c.String("subject"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
