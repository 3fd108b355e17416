package docker

import (
	"context"
	"fmt"
)

// ImageExists checks if an image exists locally
func (p *DockerProvider) ImageExists(ctx context.Context, imageName string) bool {
	_, err := p.runner.Run(ctx, p.binary, "image", "inspect", imageName)
	return err == nil
}

// PullImage fetches an image from its registry
func (p *DockerProvider) PullImage(ctx context.Context, imageName string) error {
	dockerLogger.Infof("Pulling image %s", imageName)
	if _, err := p.runner.Run(ctx, p.binary, "pull", imageName); err != nil {
		return fmt.Errorf("pull image %s: %w", imageName, err)
	}
	return nil
}
