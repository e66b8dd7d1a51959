/*
 * Copyright 2022 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package asm

import (
    `github.com/alecthomas/participle/v2/lexer`
)

var Lexer = lexer.MustStateful(lexer.Rules {
    "Root": {
        { "Comment"    , `;[^\n]*`                 , nil },
        { "Value"      , `%[a-zA-Z0-9_.]+`         , nil },
        { "Global"     , `@[a-zA-Z_][a-zA-Z0-9_.]*`, nil },
        { "Int"        , `-?[0-9]+`                , nil },
        { "Ident"      , `[a-zA-Z_][a-zA-Z0-9_.]*` , nil },
        { "Punct"      , `[{}\[\](),:=]`           , nil },
        { "Whitespace" , `[ \t\r\n]+`              , nil },
    },
})

type Module struct {
    Funcs []*Func `@@*`
}

type Func struct {
    Pos    lexer.Position
    Name   string   `"func" @Ident "{"`
    Blocks []*Block `@@* "}"`
}

type Block struct {
    Pos   lexer.Position
    Label string  `@Ident ":"`
    Body  []*Insn `@@*`
}

type Insn struct {
    Pos    lexer.Position
    Def    *Def    `  @@`
    Store  *Store  `| @@`
    Call   *Call   `| @@`
    Goto   *Goto   `| @@`
    Branch *Branch `| @@`
    Ret    *Ret    `| @@`
}

type Def struct {
    R    string `@Value "="`
    Expr *Expr  `@@`
}

type Expr struct {
    Phi   *Phi    `  @@`
    Const *int64  `| "const" @Int`
    Arg   *int    `| "arg" @Int`
    Load  *string `| "load" @Value`
    Call  *Call   `| @@`
    Op    *Op     `| @@`
}

type Phi struct {
    Incoming []*Incoming `"phi" "[" ( @@ ( "," @@ )* )? "]"`
}

type Incoming struct {
    Label string `@Ident ":"`
    Value string `@Value`
}

type Op struct {
    Name string   `@Ident`
    Args []string `@Value ( "," @Value )?`
}

type Call struct {
    Kind string   `@( "call" | "intrinsic" )`
    Fn   string   `@Global "("`
    Args []string `( @Value ( "," @Value )* )? ")"`
}

type Store struct {
    V   string `"store" @Value ","`
    Mem string `@Value`
}

type Goto struct {
    To string `"goto" @Ident`
}

type Branch struct {
    Cond string `"br" @Value ","`
    Then string `@Ident ","`
    Else string `@Ident`
}

type Ret struct {
    Values []string `"ret" ( @Value ( "," @Value )* )?`
}

func (self *Insn) isTerminator() bool {
    return self.Goto != nil || self.Branch != nil || self.Ret != nil
}

func (self *Insn) isPhi() bool {
    return self.Def != nil && self.Def.Expr.Phi != nil
}
