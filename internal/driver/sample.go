package driver

import (
	"context"
	"errors"
	"fmt"
	"path"

	"go.uber.org/zap"

	"tcrkp/internal/blob"
	"tcrkp/internal/network"
	"tcrkp/internal/runs"
	"tcrkp/internal/scenario"
	"tcrkp/internal/siminput"
)

// writeSample applies the sample's self-ligand count and writes its
// working directory. Only the initial counts differ between samples.
func (d *Driver) writeSample(ctx context.Context, p Plan, v *scenario.Variant, n *network.Network, params siminput.Params, i, count int) (runs.Sample, error) {
	if err := v.SetSelfLigandCount(count); err != nil {
		return runs.Sample{}, err
	}
	dir := SampleDir(i)
	name := fmt.Sprintf("%s_%d", n.SimulationName, i)
	sample := runs.Sample{Index: i, SelfLigands: count, Dir: dir, SimulationName: name}

	if err := d.prepareDir(ctx, p.Existing, dir); err != nil {
		return sample, err
	}

	data, err := siminput.Marshal(siminput.FromNetwork(n, name, v.InitialCounts(), params))
	if err != nil {
		return sample, err
	}
	inputKey := path.Join(dir, InputFile)
	if err := d.putArtifact(ctx, p.Existing, inputKey, data, "application/json", true); err != nil {
		return sample, err
	}

	url, err := d.store.PresignURL(ctx, inputKey, blob.SignedURLOptions{Method: "GET", Expiry: p.URLExpiry})
	switch {
	case err == nil:
		sample.InputURL = url
	case errors.Is(err, blob.ErrUnsupported):
	default:
		return sample, fmt.Errorf("presign %s: %w", inputKey, err)
	}

	sd := scriptData{
		Name:       name,
		Dir:        dir,
		InputFile:  InputFile,
		OutputFile: p.OutputFile,
		Simulator:  p.Simulator,
		Steady:     p.SteadyStateCheck,
	}
	if _, local := blob.LocalPath(d.store, dir); !local {
		sd.InputURL = sample.InputURL
		outputKey := path.Join(dir, p.OutputFile)
		sd.OutputURL, err = d.store.PresignURL(ctx, outputKey, blob.SignedURLOptions{Method: "PUT", Expiry: p.URLExpiry})
		switch {
		case err == nil:
		case errors.Is(err, blob.ErrUnsupported):
			d.logger.Debug("store cannot presign uploads",
				zap.String("sample", dir), zap.String("blob", string(d.store.Driver())))
		default:
			return sample, fmt.Errorf("presign %s: %w", outputKey, err)
		}
	}
	script, err := renderScript(sd)
	if err != nil {
		return sample, fmt.Errorf("render %s: %w", ScriptFile, err)
	}
	if err := d.putArtifact(ctx, p.Existing, path.Join(dir, ScriptFile), script, "text/x-shellscript", false); err != nil {
		return sample, err
	}

	if p.Existing == PolicyResume {
		done, err := blob.Exists(ctx, d.store, path.Join(dir, p.OutputFile))
		if err != nil {
			return sample, err
		}
		sample.Done = done
	}
	d.recorder.SampleWritten()
	d.logger.Debug("sample written",
		zap.String("sample", dir),
		zap.String("simulation", name),
		zap.Int("self_ligands", count),
		zap.Bool("done", sample.Done))
	return sample, nil
}

// prepareDir applies the existing-sample policy to dir.
func (d *Driver) prepareDir(ctx context.Context, policy ExistingPolicy, dir string) error {
	existing, err := d.store.List(ctx, dir+"/")
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	if len(existing) == 0 {
		return nil
	}
	switch policy {
	case PolicyResume:
		return nil
	case PolicyReplace:
		for _, info := range existing {
			if _, err := d.store.Delete(ctx, info.Key); err != nil {
				return fmt.Errorf("replace %s: %w", info.Key, err)
			}
		}
		d.logger.Info("sample replaced", zap.String("sample", dir), zap.Int("removed", len(existing)))
		return nil
	default:
		return fmt.Errorf("%s: %w", dir, ErrSampleExists)
	}
}

// writeManifests stores the drawn concentrations and their sorted copy at
// the store root.
func (d *Driver) writeManifests(ctx context.Context, policy ExistingPolicy, values []int) error {
	plain, sorted, err := siminput.Manifests(values)
	if err != nil {
		return err
	}
	for _, m := range []struct {
		key  string
		data []byte
	}{
		{siminput.ManifestName, plain},
		{siminput.SortedManifestName, sorted},
	} {
		if policy == PolicyReplace {
			if _, err := d.store.Delete(ctx, m.key); err != nil {
				return fmt.Errorf("replace %s: %w", m.key, err)
			}
		}
		if err := d.putArtifact(ctx, policy, m.key, m.data, "text/plain", true); err != nil {
			return err
		}
	}
	return nil
}
