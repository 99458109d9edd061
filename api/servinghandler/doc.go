// Package servinghandler exposes the model serving process over HTTP.
//
// The serving process loads one model at a time from its models directory
// and answers POST /predict with the Iris rule set in package serving.
package servinghandler
