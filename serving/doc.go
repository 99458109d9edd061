// Package serving loads model artifacts written by the registry and answers
// prediction requests with them.
//
// The serving process and the registry share no API. The only contract is the
// on-disk layout of the file storage backend: {modelsDir}/{id}/{version}.model.
// Load picks the first .model file in the model's directory.
//
// Prediction is a fixed rule on petal length (features[2]) and does not
// interpret the loaded bytes.
package serving
