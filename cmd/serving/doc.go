// Command serving runs the prediction stub. It loads models written by the
// registry's file backend from --models-dir and answers POST /predict.
package main
