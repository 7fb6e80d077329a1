package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/hypertrace/artifact-publisher/config"
	"github.com/hypertrace/artifact-publisher/descriptor"
	"github.com/hypertrace/artifact-publisher/entities"
	"github.com/hypertrace/artifact-publisher/publish"
	"github.com/hypertrace/artifact-publisher/repository"
	"github.com/hypertrace/artifact-publisher/utils"
	"github.com/pkg/errors"
	clitool "github.com/urfave/cli/v2"
)

const (
	Version = "0.1.0"

	configFlag    = "config"
	targetFlag    = "target"
	buildInfoFlag = "build-info"
	formatFlag    = "format"

	jsonFormat    = "json"
	pomFormat     = "pom"
	cycloneDxXml  = "cyclonedx/xml"
	cycloneDxJson = "cyclonedx/json"
)

// GetCommands returns the CLI commands. Credentials are read from the environment.
func GetCommands(logger utils.Log) []*clitool.Command {
	return getCommands(logger, repository.EnvCredentials{})
}

func getCommands(logger utils.Log, credentials repository.CredentialSource) []*clitool.Command {
	configFlags := []clitool.Flag{
		&clitool.StringFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Value:   "publish.toml",
			Usage:   "[Optional] Path to the publish configuration, a .toml or .yaml file.` `",
		},
	}

	return []*clitool.Command{
		{
			Name:      "publish",
			Usage:     "Publish the project artifacts to the configured repositories",
			UsageText: "publisher publish [--config publish.toml] [--target name]... [--build-info file]",
			Flags: append([]clitool.Flag{
				&clitool.StringSliceFlag{
					Name:  targetFlag,
					Usage: "[Optional] Name of a target to publish to. May be repeated. Defaults to the configured targets.` `",
				},
				&clitool.StringFlag{
					Name:  buildInfoFlag,
					Usage: "[Optional] Write the publication record to this file.` `",
				},
			}, configFlags...),
			Action: func(context *clitool.Context) error {
				file, err := config.Load(context.String(configFlag))
				if err != nil {
					return err
				}
				return runPublish(context, file, credentials, logger)
			},
		},
		{
			Name:      "describe",
			Usage:     "Print the artifact descriptor of the project",
			UsageText: "publisher describe [--config publish.toml] [--format json|pom|cyclonedx/json|cyclonedx/xml]",
			Flags: append([]clitool.Flag{
				&clitool.StringFlag{
					Name:  formatFlag,
					Value: jsonFormat,
					Usage: fmt.Sprintf("[Optional] Output format. Supported values are '%s', '%s', '%s' and '%s'.` `", jsonFormat, pomFormat, cycloneDxJson, cycloneDxXml),
				},
			}, configFlags...),
			Action: func(context *clitool.Context) error {
				file, err := config.Load(context.String(configFlag))
				if err != nil {
					return err
				}
				artifactDescriptor, err := file.Descriptor(credentials, file.TargetNames())
				if err != nil {
					return err
				}
				return printDescriptor(context.App.Writer, artifactDescriptor, context.String(formatFlag))
			},
		},
		{
			Name:      "validate",
			Usage:     "Check the configuration, the build outputs and the credentials without publishing",
			UsageText: "publisher validate [--config publish.toml]",
			Flags:     configFlags,
			Action: func(context *clitool.Context) error {
				file, err := config.Load(context.String(configFlag))
				if err != nil {
					return err
				}
				return validate(context.App.Writer, file, credentials)
			},
		},
		{
			Name:      "targets",
			Usage:     "List the configured repository targets",
			UsageText: "publisher targets [--config publish.toml]",
			Flags:     configFlags,
			Action: func(context *clitool.Context) error {
				file, err := config.Load(context.String(configFlag))
				if err != nil {
					return err
				}
				targets, err := file.RepositoryTargets()
				if err != nil {
					return err
				}
				for _, target := range targets {
					_, _ = fmt.Fprintf(context.App.Writer, "%s\t%s\t%s\n", target.Name, target.Kind, target.DisplayUrl())
				}
				return nil
			},
		},
	}
}

func runPublish(context *clitool.Context, file *config.File, credentials repository.CredentialSource, logger utils.Log) error {
	started := time.Now()
	registry, err := file.Registry()
	if err != nil {
		return err
	}
	targetNames := context.StringSlice(targetFlag)
	if len(targetNames) == 0 {
		targetNames = file.TargetNames()
	}
	artifactDescriptor, err := file.Descriptor(credentials, targetNames)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	orchestrator := publish.NewOrchestrator(file.PublishConfig(), registry.Snapshot(), repository.NewClientFactory(credentials, file.ClientOptions()), logger)
	results := orchestrator.Publish(ctx, artifactDescriptor, targetNames)

	if err = printJson(context.App.Writer, results); err != nil {
		return err
	}
	if path := context.String(buildInfoFlag); path != "" {
		content, err := json.MarshalIndent(publish.NewBuildInfo(artifactDescriptor, results, Version, started), "", "  ")
		if err != nil {
			return err
		}
		if err = os.WriteFile(path, content, 0644); err != nil {
			return errors.Wrap(err, "failed writing the publication record")
		}
	}
	if code := results.ExitCode(); code != 0 {
		var failed []string
		for _, result := range results.Results {
			if !result.Succeeded() {
				failed = append(failed, result.Target)
			}
		}
		return clitool.Exit(fmt.Sprintf("failed publishing %s to: %s", results.Coordinates, strings.Join(failed, ", ")), code)
	}
	return nil
}

func validate(out io.Writer, file *config.File, credentials repository.CredentialSource) error {
	registry, err := file.Registry()
	if err != nil {
		return err
	}
	snapshot := registry.Snapshot()
	for _, name := range file.TargetNames() {
		target, err := snapshot.Resolve(name)
		if err != nil {
			return err
		}
		if _, err = repository.ResolveCredentials(credentials, target.Credentials); err != nil {
			return err
		}
	}
	artifactDescriptor, err := file.Descriptor(credentials, file.TargetNames())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s is ready to be published with %d files\n", artifactDescriptor.Coordinates.String(), len(artifactDescriptor.Artifacts))
	return err
}

func printDescriptor(out io.Writer, artifactDescriptor *entities.ArtifactDescriptor, format string) error {
	switch format {
	case cycloneDxXml, cycloneDxJson:
		cdxBom, err := descriptor.ToCycloneDxBom(artifactDescriptor)
		if err != nil {
			return err
		}
		fileFormat := cdx.BOMFileFormatJSON
		if format == cycloneDxXml {
			fileFormat = cdx.BOMFileFormatXML
		}
		content, err := descriptor.EncodeCycloneDx(cdxBom, fileFormat)
		if err != nil {
			return err
		}
		_, err = out.Write(content)
		return err
	case pomFormat:
		pomFile := artifactDescriptor.PomFile()
		reader, err := pomFile.Open()
		if err != nil {
			return err
		}
		defer func() {
			_ = reader.Close()
		}()
		_, err = io.Copy(out, reader)
		return err
	case jsonFormat, "":
		return printJson(out, artifactDescriptor)
	default:
		return fmt.Errorf("'%s' is not a valid value for '%s'", format, formatFlag)
	}
}

func printJson(out io.Writer, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var content bytes.Buffer
	if err = json.Indent(&content, b, "", "  "); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, content.String())
	return err
}
