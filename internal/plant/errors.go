package plant

import "errors"

// Domain errors for the plant package.
//
//	if errors.Is(err, plant.ErrPlantNotFound) {
//	    // no plant at that position
//	}
var (
	// ErrPlantNotFound is returned when no plant occupies a position.
	ErrPlantNotFound = errors.New("plant: not found")

	// ErrPositionTaken is returned when adding a plant at an occupied position.
	ErrPositionTaken = errors.New("plant: position already taken")

	// ErrInvalidPlant is returned when plant validation fails.
	ErrInvalidPlant = errors.New("plant: invalid")

	// ErrPlantInactive is returned when watering a plant that is switched off.
	ErrPlantInactive = errors.New("plant: inactive")
)
