package main

import (
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"mriregister/internal/models"
	"mriregister/pkg/affine"
	"mriregister/pkg/config"
	"mriregister/pkg/registration"
	"mriregister/pkg/transform"
)

func main() {
	// Parse command line arguments
	fromDir := flag.String("from", "", "Directory containing the moving image's 2D slices (JPEG)")
	toDir := flag.String("to", "", "Directory containing the reference image's 2D slices (JPEG)")
	configPath := flag.String("config", "mriregister.yaml", "Configuration file (YAML)")
	optimizer := flag.String("optimizer", "", "Override the configured optimizer method")
	model := flag.String("model", "rigid", "Transform model: rigid or translation")
	flag.Parse()

	// Validate inputs
	if *fromDir == "" || *toDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	method := cfg.Registration.Optimizer
	if *optimizer != "" {
		method = *optimizer
	}

	vs := cfg.Volumes.VoxelSize
	fmt.Println("Loading moving image slices...")
	fromVol, err := loadVolume(*fromDir, vs.X, vs.Y, vs.Z)
	if err != nil {
		log.Fatalf("Failed to load moving image: %v", err)
	}
	fmt.Println("Loading reference image slices...")
	toVol, err := loadVolume(*toDir, vs.X, vs.Y, vs.Z)
	if err != nil {
		log.Fatalf("Failed to load reference image: %v", err)
	}
	fmt.Printf("Moving image: %dx%dx%d voxels, reference image: %dx%dx%d voxels\n",
		fromVol.Width, fromVol.Height, fromVol.Depth,
		toVol.Width, toVol.Height, toVol.Depth)

	// Build the registration session
	reg, err := registration.New(fromVol, toVol, &registration.Options{
		FromBins:                cfg.Registration.FromBins,
		ToBins:                  cfg.Registration.ToBins,
		VoxelBudget:             cfg.Registration.VoxelBudget,
		NumWorkers:              cfg.Processing.NumWorkers,
		EnableProgressReporting: cfg.Processing.Verbose,
	})
	if err != nil {
		log.Fatalf("Failed to create registration session: %v", err)
	}
	if err := reg.SetInterp(cfg.Registration.Interpolation); err != nil {
		log.Fatalf("Bad interpolation mode: %v", err)
	}
	if err := reg.SetSimilarity(cfg.Registration.Similarity); err != nil {
		log.Fatalf("Bad similarity measure: %v", err)
	}

	var t registration.Transform
	switch *model {
	case "rigid":
		t = transform.NewRigid()
	case "translation":
		t = transform.NewTranslation()
	default:
		log.Fatalf("Unknown transform model %q", *model)
	}

	fmt.Printf("Registering with %s/%s similarity using %s...\n",
		reg.Interp(), reg.Similarity(), method)
	startTime := time.Now()
	if _, err := reg.Optimize(t, method, &registration.OptimizeOptions{
		MaxIterations: cfg.Registration.MaxIterations,
	}); err != nil {
		log.Fatalf("Registration failed: %v", err)
	}
	elapsed := time.Since(startTime)

	fmt.Printf("\nRegistration completed in %.2f seconds\n", elapsed.Seconds())
	fmt.Printf("Optimized transform: %v\n", t)
	fmt.Printf("Final %s similarity: %.6f\n", reg.Similarity(), reg.Eval(t))
	fmt.Printf("Subsampled voxels used: %d (histogram %dx%d)\n",
		reg.NumPoints(), reg.FromBins(), reg.ToBins())
}

// loadVolume loads a directory of JPEG slices into a volume, sorted
// alphanumerically to preserve the anatomical slice order, with a scaling
// voxel-to-world affine built from the configured voxel size.
func loadVolume(dir string, vx, vy, vz float64) (*models.Volume, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	// Filter and sort JPG files
	var imageFiles []string
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if ext == ".jpg" || ext == ".jpeg" {
			imageFiles = append(imageFiles, file.Name())
		}
	}
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no JPG images found in %s", dir)
	}
	sort.Slice(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	var vol *models.Volume
	for z, filename := range imageFiles {
		img, err := loadImage(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %v", filename, err)
		}
		bounds := img.Bounds()
		if vol == nil {
			vol = models.NewVolume(bounds.Dx(), bounds.Dy(), len(imageFiles),
				affine.Scaling(vx, vy, vz))
		}
		if bounds.Dx() != vol.Width || bounds.Dy() != vol.Height {
			return nil, fmt.Errorf("slice %s has dimensions %dx%d, expected %dx%d",
				filename, bounds.Dx(), bounds.Dy(), vol.Width, vol.Height)
		}
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				// Convert 16-bit color to float64 (0-1 range)
				vol.Set(x, y, z, float64(r)/65535.0)
			}
		}
	}
	return vol, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}
	if numStr != "" {
		if num, err := strconv.Atoi(numStr); err == nil {
			return num
		}
	}
	return 0
}

// loadImage loads an image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := jpeg.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}
